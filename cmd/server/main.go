package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finvault/trading-ledger/internal/config"
	"github.com/finvault/trading-ledger/internal/events/kafka"
	"github.com/finvault/trading-ledger/internal/interfaces"
	"github.com/finvault/trading-ledger/internal/ledger"
	"github.com/finvault/trading-ledger/internal/logging"
	"github.com/finvault/trading-ledger/internal/server"
	"github.com/finvault/trading-ledger/internal/storage/memory"
	"github.com/finvault/trading-ledger/internal/storage/postgres"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.ServiceName, cfg.Env)

	if cfg.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := ledger.NewMetrics(registry)

	var (
		ledgerStore  interfaces.LedgerStore
		accountStore interfaces.AccountStore
		orderStore   interfaces.OrderStore
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("db open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(context.Background()); err != nil {
			logger.Error("db ping failed", "error", err)
			os.Exit(1)
		}
		store := postgres.NewStore(db)
		ledgerStore, accountStore, orderStore = store, store, store
		logger.Info("using postgres store")
	} else {
		store := memory.NewStore()
		ledgerStore, accountStore, orderStore = store, store, store
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		logger.Info("kafka publisher enabled", "topic", cfg.KafkaTopic)
	}

	ledgerService := ledger.NewService(ledgerStore, accountStore, orderStore, publisher, logger, ledgerMetrics)
	srv := server.New(ledgerService, []byte(cfg.JWTSecret), registry, logger)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
