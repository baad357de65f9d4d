package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ornamenta/jewelstore/internal/catalog"
	"github.com/ornamenta/jewelstore/internal/config"
	"github.com/ornamenta/jewelstore/internal/httpx"
	"github.com/ornamenta/jewelstore/internal/inventory"
	kafkax "github.com/ornamenta/jewelstore/internal/kafka"
	"github.com/ornamenta/jewelstore/internal/logging"
	"github.com/ornamenta/jewelstore/internal/orders"
	"github.com/ornamenta/jewelstore/internal/postgres"
	"github.com/ornamenta/jewelstore/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logging.Must(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatal("postgres schema", zap.Error(err))
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()

	// The producer outlives the signal context so handlers can still publish
	// while the HTTP server drains; main flushes it explicitly afterwards.
	prod := kafkax.NewProducer(log, cfg.KafkaBrokers, 1024)
	prod.Start(context.Background())

	catalogRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	ledger := &inventory.Ledger{DB: db}
	engine := orders.NewEngine(orderRepo, ledger, catalogRepo, log)

	r := httpx.NewRouter()
	(&httpx.OrdersHandler{
		Engine:   engine,
		Producer: prod,
		Redis:    rdb,
		Log:      log,
		Service:  cfg.ServiceName,
	}).Register(r)
	(&httpx.ProductsHandler{Repo: catalogRepo, Log: log}).Register(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	prod.Close()
	prod.WaitClosed()
	log.Info("stopped")
}
