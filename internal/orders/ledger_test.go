package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRejectsNonPositiveQuantity(t *testing.T) {
	store := NewMemStore()
	store.PutProduct(Product{ID: "A", Name: "Mug", Price: dec("1000"), Stock: intp(10)})

	for _, qty := range []int{0, -5} {
		err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
			l := newLedger(tx)
			require.NoError(t, l.load(ctx, []string{"A"}))
			if _, err := l.reserve("A", qty); err != nil {
				return err
			}
			return l.apply(ctx, testNow)
		})
		assert.Equal(t, KindValidation, KindOf(err), "qty %d", qty)
	}

	p, _ := store.Product("A")
	assert.Equal(t, 10, *p.Stock)
}
