package orders

import (
	"context"
	"errors"
	"fmt"
)

// ErrWriteConflict is returned by a Store when a transaction lost a race with a
// concurrent writer. It is always safe to rerun the transaction from scratch.
var ErrWriteConflict = errors.New("write conflict")

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

type InsufficientStockError struct {
	ProductID string
	Product   string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.Product, e.Available, e.Requested)
}

// ConflictError means the order could not be committed in the time or attempts
// allowed. Nothing was written; the caller may retry.
type ConflictError struct {
	Attempts int
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("order not committed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() error { return e.Err }

// KindOf classifies err into the closed set of outcomes callers branch on.
// Anything unrecognised is internal.
func KindOf(err error) Kind {
	var (
		ve *ValidationError
		nf *NotFoundError
		is *InsufficientStockError
		ce *ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &is):
		return KindInsufficientStock
	case errors.As(err, &ce):
		return KindConflict
	default:
		return KindInternal
	}
}

// storeErr wraps infrastructure failures as internal while letting conflicts,
// context errors and already classified errors through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrWriteConflict) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if KindOf(err) != KindInternal {
		return err
	}
	var ie *InternalError
	if errors.As(err, &ie) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}
