package orders_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/marketplace-orders/internal/orders"
	pgstore "github.com/ariefcatur/marketplace-orders/internal/postgres"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func setupRepo(t *testing.T) *orders.Repo {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orders"),
		postgres.WithUsername("app"),
		postgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, pgstore.Migrate(dsn))

	pool, err := pgstore.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return &orders.Repo{DB: pool}
}

func num(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func stock(n int) *int { return &n }

func TestRepoPlaceOrder(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SeedProduct(ctx, orders.Product{ID: "A", Name: "Mug", Price: num("1000"), Stock: stock(5), VendorID: "v1"}))
	require.NoError(t, repo.SeedProduct(ctx, orders.Product{ID: "B", Name: "Lamp", Price: num("500"), Stock: stock(1), VendorID: "v2"}))
	require.NoError(t, repo.SeedPromotion(ctx, orders.Promotion{
		ID: "p1", Code: "save10", Type: orders.PromotionPercentage, Value: num("10"),
		IsActive: true, StartDate: time.Now().Add(-time.Hour), UsageLimit: stock(5),
	}))

	svc := orders.NewService(repo, zap.NewNop())
	o, err := svc.PlaceOrder(ctx, orders.PlaceOrderRequest{
		UserID:          "u1",
		Items:           []orders.CartLine{{ProductID: "A", Quantity: 2}},
		ShippingAddress: orders.ShippingAddress{FullName: "Ana", Address: "Calle 1"},
		PaymentMethod:   "card",
		PromotionCode:   "SAVE10",
	})
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.Equal(num("2588.00")))

	got, err := repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(num("2588")))
	assert.Equal(t, "SAVE10", got.PromotionCode)
	assert.Equal(t, []string{"v1"}, got.VendorIDs)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Mug", got.Items[0].Name)
	assert.Equal(t, orders.RefundNone, got.Items[0].RefundStatus)
	assert.Equal(t, "Ana", got.ShippingAddress.FullName)
	require.Len(t, got.StatusHistory, 1)

	ps, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, 3, *ps[0].Stock)
	assert.NotNil(t, ps[0].LastStockUpdate)

	promo, err := repo.FindPromotionByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.TimesUsed)

	byVendor, err := repo.ListOrders(ctx, orders.OrderFilter{VendorID: "v1"})
	require.NoError(t, err)
	assert.Len(t, byVendor, 1)
	none, err := repo.ListOrders(ctx, orders.OrderFilter{VendorID: "v2"})
	require.NoError(t, err)
	assert.Empty(t, none)

	// Atomicity: B is short, so A must not move.
	_, err = svc.PlaceOrder(ctx, orders.PlaceOrderRequest{
		UserID:          "u1",
		Items:           []orders.CartLine{{ProductID: "A", Quantity: 1}, {ProductID: "B", Quantity: 2}},
		ShippingAddress: orders.ShippingAddress{FullName: "Ana", Address: "Calle 1"},
		PaymentMethod:   "card",
	})
	assert.Equal(t, orders.KindInsufficientStock, orders.KindOf(err))
	ps, err = repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, *ps[0].Stock)
	assert.Equal(t, 1, *ps[1].Stock)

	_, err = repo.GetOrder(ctx, "missing")
	assert.Equal(t, orders.KindNotFound, orders.KindOf(err))
}

func TestRepoPreventsOversell(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SeedProduct(ctx, orders.Product{ID: "B", Name: "Lamp", Price: num("500"), Stock: stock(1)}))

	svc := orders.NewService(repo, zap.NewNop(), orders.WithRetryPolicy(orders.RetryPolicy{
		MaxAttempts: 10, BaseDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond,
	}))

	const buyers = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, orders.PlaceOrderRequest{
				UserID:          fmt.Sprintf("u%d", i),
				Items:           []orders.CartLine{{ProductID: "B", Quantity: 1}},
				ShippingAddress: orders.ShippingAddress{FullName: "Ana", Address: "Calle 1"},
				PaymentMethod:   "card",
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	ps, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, *ps[0].Stock)
	all, err := repo.ListOrders(ctx, orders.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRepoPromotionLimitUnderContention(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SeedPromotion(ctx, orders.Promotion{
		ID: "p-once", Code: "ONCE", Type: orders.PromotionFixed, Value: num("100"),
		IsActive: true, StartDate: time.Now().Add(-time.Hour), UsageLimit: stock(1),
	}))
	const buyers = 8
	for i := 0; i < buyers; i++ {
		require.NoError(t, repo.SeedProduct(ctx, orders.Product{ID: fmt.Sprintf("P%d", i), Name: "Tote", Price: num("1000"), Stock: stock(5)}))
	}

	svc := orders.NewService(repo, zap.NewNop(), orders.WithRetryPolicy(orders.RetryPolicy{
		MaxAttempts: 10, BaseDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond,
	}))

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		discounted int
		failed     []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := svc.PlaceOrder(ctx, orders.PlaceOrderRequest{
				UserID:          fmt.Sprintf("u%d", i),
				Items:           []orders.CartLine{{ProductID: fmt.Sprintf("P%d", i), Quantity: 1}},
				ShippingAddress: orders.ShippingAddress{FullName: "Ana", Address: "Calle 1"},
				PaymentMethod:   "card",
				PromotionCode:   "ONCE",
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, err)
				return
			}
			if !o.DiscountAmount.IsZero() {
				discounted++
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, failed)
	assert.Equal(t, 1, discounted)
	promo, err := repo.FindPromotionByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.TimesUsed)
}
