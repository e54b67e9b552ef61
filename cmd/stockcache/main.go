package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/medstok/go-pharmacy-orders/internal/config"
	kafkax "github.com/medstok/go-pharmacy-orders/internal/kafka"
	"github.com/medstok/go-pharmacy-orders/internal/ledger"
	"github.com/medstok/go-pharmacy-orders/internal/orders"
	"github.com/medstok/go-pharmacy-orders/internal/postgres"
	"github.com/medstok/go-pharmacy-orders/internal/redisx"
	"github.com/medstok/go-pharmacy-orders/internal/stockcache"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &stockcache.Service{
		Ledger:      &ledger.PG{DB: db},
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-stockcache",
		Log:         log,
	}

	group := config.Getenv("STOCKCACHE_GROUP", "stockcache-svc")
	workers := config.Getint("STOCKCACHE_WORKERS", 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicStockEvents, workers, log)

	go func() {
		log.Info("stockcache consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicStockEvents),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, svc.HandleStockChanged); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
