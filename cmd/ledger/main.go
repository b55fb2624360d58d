package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/ledger"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	service := cfg.ServiceName + "-ledger"
	logger, err := logging.New(service, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &ledger.Service{
		Sink:        ledger.NewHTTPSink(cfg.LedgerURL),
		Dedup:       &ledger.RedisDedup{Redis: rdb, Service: service},
		MaxAttempts: cfg.LedgerMaxAttempts,
		Log:         logger,
	}

	// both topics share the handler; order id keys keep each order's events ordered
	var wg sync.WaitGroup
	for _, topic := range []string{orders.TopicOrderCreated, orders.TopicOrderStatusChanged} {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.LedgerGroup, topic, cfg.LedgerWorkers, logger)
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			logger.Info("ledger consumer started",
				zap.String("group", cfg.LedgerGroup), zap.String("topic", topic), zap.Int("workers", cfg.LedgerWorkers))
			if err := cons.Start(ctx, svc.Handle); err != nil {
				logger.Error("consumer exit", zap.String("topic", topic), zap.Error(err))
				cancel()
			}
		}(topic)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info("shutting down consumers")
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()
}
