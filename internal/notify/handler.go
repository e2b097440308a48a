package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ariefcatur/marketplace-orders/internal/kafka"
	"github.com/ariefcatur/marketplace-orders/internal/orders"
	"github.com/ariefcatur/marketplace-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ConfirmationHandler turns OrderPlaced events into customer confirmations,
// at most once per event id.
type ConfirmationHandler struct {
	Redis   *redis.Client
	Sender  Sender
	Log     *zap.Logger
	Service string
}

func (h *ConfirmationHandler) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	if t := kafka.Header(m, kafka.HeaderEventType); t != "" && t != orders.EventOrderPlaced {
		return nil
	}
	if v := kafka.Header(m, kafka.HeaderEventVersion); v != "" && v != strconv.Itoa(orders.EventVersion) {
		h.Log.Warn("skip unsupported event version", zap.String("version", v), zap.Int64("offset", m.Offset))
		return nil
	}

	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// Unparseable messages can never succeed; commit and move on.
		h.Log.Error("drop malformed event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	key := fmt.Sprintf(redisx.KeyDedup, h.Service, env.EventID)
	fresh, err := redisx.Claim(ctx, h.Redis, key, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !fresh {
		h.Log.Debug("duplicate event skipped", zap.String("event_id", env.EventID))
		return nil
	}

	p, err := kafka.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		h.Log.Error("drop event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	if err := h.Sender.Send(ctx, renderConfirmation(p)); err != nil {
		// give the key back, the consumer retries this message
		if derr := redisx.Unclaim(ctx, h.Redis, key); derr != nil {
			h.Log.Warn("release dedup key", zap.String("key", key), zap.Error(derr))
		}
		return fmt.Errorf("send confirmation for %s: %w", p.OrderID, err)
	}
	return nil
}
