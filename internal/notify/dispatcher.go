package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ariefcatur/marketplace-orders/internal/kafka"
	"github.com/ariefcatur/marketplace-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// Dispatcher publishes OrderPlaced events off the request path. Failures are
// logged and dropped; they never reach the caller of OrderPlaced.
type Dispatcher struct {
	pub      Publisher
	producer string
	timeout  time.Duration
	log      *zap.Logger
	cb       *gobreaker.CircuitBreaker[struct{}]
	wg       sync.WaitGroup
}

func NewDispatcher(pub Publisher, producer string, timeout time.Duration, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{pub: pub, producer: producer, timeout: timeout, log: log}
	d.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "order-notify",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return d
}

func (d *Dispatcher) OrderPlaced(o orders.Order) {
	env, err := orders.NewEnvelope(orders.EventOrderPlaced, d.producer, o.ID, orders.NewOrderPlacedPayload(o), time.Now().UTC())
	if err != nil {
		d.log.Error("build order placed event", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	value := kafka.MustMarshal(env)
	headers := []kafkago.Header{
		{Key: kafka.HeaderEventType, Value: []byte(env.EventType)},
		{Key: kafka.HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("notify panic", zap.String("order_id", o.ID), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		_, err := d.cb.Execute(func() (struct{}, error) {
			return struct{}{}, d.pub.Publish(ctx, orders.PartitionKey(o.ID), value, headers...)
		})
		if err != nil {
			d.log.Warn("order placed notification dropped", zap.String("order_id", o.ID), zap.Error(err))
			return
		}
		d.log.Debug("order placed notification published", zap.String("order_id", o.ID), zap.String("event_id", env.EventID))
	}()
}

// Wait blocks until every in-flight notification has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }
