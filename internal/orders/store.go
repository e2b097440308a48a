package orders

import (
	"context"
	"time"
)

// Tx is the view of the store inside one transaction attempt. Reads observe a
// consistent snapshot; writes become visible only if the attempt commits.
type Tx interface {
	// GetProducts returns the products that exist among ids, keyed by id.
	GetProducts(ctx context.Context, ids []string) (map[string]Product, error)
	// FindPromotionByCode returns nil, nil when no promotion has code.
	FindPromotionByCode(ctx context.Context, code string) (*Promotion, error)
	DecrementStock(ctx context.Context, productID string, qty int, at time.Time) error
	IncrementPromotionUsage(ctx context.Context, promotionID string, at time.Time) error
	InsertOrder(ctx context.Context, o *Order) error
}

type Store interface {
	// RunInTx runs fn in a single transaction attempt. If fn returns an error
	// nothing it wrote is kept. Lost races surface as ErrWriteConflict.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	ListProducts(ctx context.Context) ([]Product, error)
	FindPromotionByCode(ctx context.Context, code string) (*Promotion, error)
}
