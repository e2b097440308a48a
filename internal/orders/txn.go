package orders

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 25 * time.Millisecond, MaxDelay: 500 * time.Millisecond}
}

// Backoff returns the wait before attempt+1: exponential from BaseDelay, capped
// at MaxDelay, with up to 50% jitter added.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

// WithTransaction runs fn in a fresh transaction until it commits, fails with
// something other than ErrWriteConflict, or the attempts or ctx run out. Each
// attempt starts from a clean snapshot; fn must not keep state across calls.
func WithTransaction[T any](ctx context.Context, s Store, p RetryPolicy, fn func(ctx context.Context, tx Tx) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		var out T
		err := s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			v, err := fn(ctx, tx)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrWriteConflict) {
			// A store failure caused by the deadline is a timeout, not a fault.
			if ctxErr := ctx.Err(); ctxErr != nil && KindOf(err) == KindInternal {
				return zero, &ConflictError{Attempts: attempt, Err: ctxErr}
			}
			return zero, err
		}
		if attempt >= attempts {
			return zero, &ConflictError{Attempts: attempt, Err: err}
		}

		t := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, &ConflictError{Attempts: attempt, Err: ctx.Err()}
		case <-t.C:
		}
	}
}
