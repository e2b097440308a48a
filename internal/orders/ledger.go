package orders

import (
	"context"
	"fmt"
	"time"
)

type stockDecrement struct {
	productID string
	qty       int
}

// ledger checks stock against the transaction snapshot and queues decrements
// until the whole cart has been accepted.
type ledger struct {
	tx       Tx
	products map[string]Product
	pending  []stockDecrement
}

func newLedger(tx Tx) *ledger {
	return &ledger{tx: tx}
}

func (l *ledger) load(ctx context.Context, ids []string) error {
	ps, err := l.tx.GetProducts(ctx, ids)
	if err != nil {
		return storeErr("read products", err)
	}
	l.products = ps
	return nil
}

func (l *ledger) reserve(productID string, qty int) (Product, error) {
	p, ok := l.products[productID]
	if !ok {
		return Product{}, &NotFoundError{Entity: "product", ID: productID}
	}
	if qty <= 0 {
		return Product{}, &ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be greater than zero for %s", productID)}
	}
	if p.Stock == nil || *p.Stock < qty {
		available := 0
		if p.Stock != nil {
			available = *p.Stock
		}
		return Product{}, &InsufficientStockError{ProductID: p.ID, Product: p.Name, Available: available, Requested: qty}
	}
	l.pending = append(l.pending, stockDecrement{productID: productID, qty: qty})
	return p, nil
}

func (l *ledger) apply(ctx context.Context, at time.Time) error {
	for _, d := range l.pending {
		if err := l.tx.DecrementStock(ctx, d.productID, d.qty, at); err != nil {
			return storeErr("decrement stock", err)
		}
	}
	return nil
}
