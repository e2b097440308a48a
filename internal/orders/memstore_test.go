package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreDetectsStaleRead(t *testing.T) {
	m := NewMemStore()
	m.PutProduct(Product{ID: "A", Name: "Mug", Price: dec("10"), Stock: intp(5)})
	ctx := context.Background()

	err := m.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.GetProducts(ctx, []string{"A"})
		require.NoError(t, err)

		// A concurrent writer commits between our read and our commit.
		require.NoError(t, m.RunInTx(ctx, func(ctx context.Context, tx2 Tx) error {
			_, err := tx2.GetProducts(ctx, []string{"A"})
			require.NoError(t, err)
			return tx2.DecrementStock(ctx, "A", 1, testNow)
		}))

		return tx.DecrementStock(ctx, "A", 5, testNow)
	})
	assert.ErrorIs(t, err, ErrWriteConflict)

	p, _ := m.Product("A")
	assert.Equal(t, 4, *p.Stock)
}

func TestMemStoreDiscardsWritesOnError(t *testing.T) {
	m := NewMemStore()
	m.PutProduct(Product{ID: "A", Name: "Mug", Price: dec("10"), Stock: intp(5)})
	ctx := context.Background()

	err := m.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, _ = tx.GetProducts(ctx, []string{"A"})
		require.NoError(t, tx.DecrementStock(ctx, "A", 2, testNow))
		require.NoError(t, tx.InsertOrder(ctx, &Order{ID: "o1"}))
		return &ValidationError{Reason: "boom"}
	})
	require.Error(t, err)

	p, _ := m.Product("A")
	assert.Equal(t, 5, *p.Stock)
	_, err = m.GetOrder(ctx, "o1")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestMemStoreRejectsBlindWrites(t *testing.T) {
	m := NewMemStore()
	err := m.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.DecrementStock(ctx, "A", 1, time.Now())
	})
	assert.Error(t, err)
}

func TestMemStoreLoadSeed(t *testing.T) {
	m := NewMemStore()
	seed := `{
		"products": [{"id": "A", "name": "Mug", "price": "1000", "stock": 3, "vendor_id": "v1"}],
		"promotions": [{"id": "p1", "code": "save10", "type": "percentage", "value": "10",
			"is_active": true, "start_date": "2026-01-01T00:00:00Z", "min_purchase_amount": null}]
	}`
	require.NoError(t, m.LoadSeed(strings.NewReader(seed)))

	p, ok := m.Product("A")
	require.True(t, ok)
	assert.Equal(t, 3, *p.Stock)
	assert.True(t, p.Price.Equal(dec("1000")))

	promo, err := m.FindPromotionByCode(context.Background(), "SAVE10")
	require.NoError(t, err)
	require.NotNil(t, promo)
	assert.False(t, promo.MinPurchaseAmount.Valid)
}
