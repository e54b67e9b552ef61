package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/medstok/go-pharmacy-orders/internal/catalog"
	"github.com/medstok/go-pharmacy-orders/internal/config"
	"github.com/medstok/go-pharmacy-orders/internal/fulfillment"
	"github.com/medstok/go-pharmacy-orders/internal/httpx"
	kafkax "github.com/medstok/go-pharmacy-orders/internal/kafka"
	"github.com/medstok/go-pharmacy-orders/internal/ledger"
	"github.com/medstok/go-pharmacy-orders/internal/orders"
	"github.com/medstok/go-pharmacy-orders/internal/postgres"
	"github.com/medstok/go-pharmacy-orders/internal/redisx"
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

	if cfg.AutoMigrate {
		if err := postgres.Migrate(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	orderEvents := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
	orderEvents.Start(ctx)
	stockEvents := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockEvents, 1024, log)
	stockEvents.Start(ctx)

	catalogStore := &catalog.PG{DB: db}
	ledgerStore := &ledger.PG{DB: db}
	orderStore := &orders.PG{DB: db}
	svc := &fulfillment.Service{
		Catalog: catalogStore,
		Ledger:  ledgerStore,
		Orders:  orderStore,
		Tx:      &postgres.TxManager{Pool: db},
		Log:     log,
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{
		Svc:         svc,
		Redis:       rdb,
		OrderEvents: orderEvents,
		StockEvents: stockEvents,
		Service:     cfg.ServiceName,
		Log:         log,
	}).Register(router)
	(&httpx.InventoryHandler{
		Svc:         svc,
		Ledger:      ledgerStore,
		Redis:       rdb,
		StockEvents: stockEvents,
		Service:     cfg.ServiceName,
		Log:         log,
	}).Register(router)
	(&httpx.CatalogHandler{Catalog: catalogStore}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	orderEvents.Close()
	stockEvents.Close()
	cancel()
	orderEvents.WaitClosed()
	stockEvents.WaitClosed()
}
