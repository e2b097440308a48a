package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/marketplace-orders/internal/config"
	"github.com/ariefcatur/marketplace-orders/internal/httpx"
	kafkax "github.com/ariefcatur/marketplace-orders/internal/kafka"
	"github.com/ariefcatur/marketplace-orders/internal/logging"
	"github.com/ariefcatur/marketplace-orders/internal/notify"
	"github.com/ariefcatur/marketplace-orders/internal/orders"
	"github.com/ariefcatur/marketplace-orders/internal/postgres"
	"github.com/ariefcatur/marketplace-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log, cfg.ServiceName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("order api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer + notifier
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, log.Named("kafka"))
	prod.Start()
	dispatcher := notify.NewDispatcher(prod, cfg.ServiceName, cfg.Notify.Timeout, log.Named("notify"))

	svc := orders.NewService(store, log.Named("orders"),
		orders.WithNotifier(dispatcher),
		orders.WithTimeout(cfg.Order.Timeout),
		orders.WithRetryPolicy(orders.RetryPolicy{
			MaxAttempts: cfg.Order.MaxAttempts,
			BaseDelay:   cfg.Order.RetryBase,
			MaxDelay:    cfg.Order.RetryMax,
		}),
		orders.WithPricingRules(orders.PricingRules{
			TaxRate:          cfg.Pricing.TaxRate,
			FreeShippingOver: cfg.Pricing.FreeShippingOver,
			FlatShipping:     cfg.Pricing.FlatShipping,
		}),
	)

	// HTTP
	router := httpx.NewRouter(log.Named("http"))
	(&httpx.OrdersHandler{
		Service: svc,
		Idem:    redisx.NewIdempotency(rdb),
		Cache:   redisx.NewOrderCache(rdb),
		Log:     log.Named("http"),
	}).Register(router)
	(&httpx.CatalogHandler{Service: svc, Log: log.Named("http")}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// serve & graceful shutdown
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		dispatcher.Wait() // requests drained, nothing new to publish
		prod.Close()      // close inbox -> flush & close writer
		prod.WaitClosed()
		return err
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (orders.Store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		m := orders.NewMemStore()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				return nil, nil, fmt.Errorf("open seed: %w", err)
			}
			defer f.Close()
			if err := m.LoadSeed(f); err != nil {
				return nil, nil, err
			}
		}
		log.Warn("using in-memory store; data is lost on restart")
		return m, func() {}, nil
	}

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	return &orders.Repo{DB: db}, db.Close, nil
}
