package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrProducerClosed = errors.New("producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type outgoing struct {
	msg  kafka.Message
	done chan error
}

// Producer writes messages from one goroutine; Publish waits for its own write.
type Producer struct {
	w            messageWriter
	inbox        chan outgoing
	closeCh      chan struct{}
	log          *zap.Logger
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, buf, log)
}

func newProducer(w messageWriter, buf int, log *zap.Logger) *Producer {
	return &Producer{
		w:            w,
		inbox:        make(chan outgoing, buf),
		closeCh:      make(chan struct{}),
		log:          log,
		writeTimeout: 10 * time.Second,
	}
}

// Start runs the write loop until Close; pending messages are flushed first.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for out := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
			err := p.w.WriteMessages(ctx, out.msg)
			cancel()
			if err != nil {
				p.log.Error("kafka write failed", zap.ByteString("key", out.msg.Key), zap.Error(err))
			}
			out.done <- err
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn("kafka writer close", zap.Error(err))
		}
	}()
}

// Publish hands the message to the write loop and returns the broker's answer.
// It gives up when ctx is done; a message already queued may still be written.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	out := outgoing{
		msg:  kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers},
		done: make(chan error, 1),
	}
	if err := p.enqueue(ctx, out); err != nil {
		return err
	}
	select {
	case err := <-out.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Producer) enqueue(ctx context.Context, out outgoing) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- out:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Producer) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
	})
}

func (p *Producer) WaitClosed() { <-p.closeCh }
