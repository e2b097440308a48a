package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/marketplace-orders/internal/config"
	kafkax "github.com/ariefcatur/marketplace-orders/internal/kafka"
	"github.com/ariefcatur/marketplace-orders/internal/logging"
	"github.com/ariefcatur/marketplace-orders/internal/notify"
	"github.com/ariefcatur/marketplace-orders/internal/orders"
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
	service := cfg.ServiceName + "-notifier"
	log, err := logging.New(cfg.Log, service)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis (dedup)
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	h := &notify.ConfirmationHandler{
		Redis:   rdb,
		Sender:  notify.LogSender{Log: log.Named("sender")},
		Log:     log,
		Service: service,
	}
	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.Notify.Group, orders.TopicOrderPlaced, cfg.Notify.Workers, log.Named("kafka"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("notifier consumer started",
			zap.String("group", cfg.Notify.Group),
			zap.String("topic", orders.TopicOrderPlaced),
			zap.Int("workers", cfg.Notify.Workers))
		return cons.Start(gctx, h.HandleOrderPlaced)
	})
	if err := g.Wait(); err != nil {
		log.Error("consumer exit", zap.Error(err))
		os.Exit(1)
	}
	log.Info("notifier stopped")
}
