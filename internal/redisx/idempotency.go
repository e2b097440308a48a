package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

var ErrInFlight = errors.New("a request with this idempotency key is still in progress")

type Idempotency struct{ rdb *redis.Client }

func NewIdempotency(rdb *redis.Client) *Idempotency { return &Idempotency{rdb: rdb} }

// Begin claims key for userID. If an earlier request already completed, its
// order id is returned and the caller must replay it instead of placing again.
func (i *Idempotency) Begin(ctx context.Context, userID, key string) (string, error) {
	k := fmt.Sprintf(KeyIdemPlaceOrder, userID, key)
	ok, err := i.rdb.SetNX(ctx, k, pendingMarker, TTLPending).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}
	v, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) || v == pendingMarker {
		return "", ErrInFlight
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID, key, orderID string) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemPlaceOrder, userID, key), orderID, TTLIdempotency).Err()
}

// Release: drop the key after a failed attempt.
func (i *Idempotency) Release(ctx context.Context, userID, key string) error {
	return i.rdb.Del(ctx, fmt.Sprintf(KeyIdemPlaceOrder, userID, key)).Err()
}
