package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jeongsan/internal/amqp"
	"jeongsan/internal/archive"
	"jeongsan/internal/cache"
	"jeongsan/internal/config"
	"jeongsan/internal/core"
	"jeongsan/internal/gateway"
	apphttp "jeongsan/internal/http"
	applog "jeongsan/internal/log"
	"jeongsan/internal/retry"
	"jeongsan/internal/services"
	"jeongsan/internal/storage"
	"jeongsan/internal/store"
	fsstore "jeongsan/internal/store/firestore"
	memstore "jeongsan/internal/store/memory"
)

func main() {
	// Load .env for local development; absent in production is fine.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var docStore store.DocumentStore
	switch cfg.StoreBackend {
	case "firestore":
		client, err := fsstore.New(ctx, fsstore.Config{
			ProjectID:            cfg.FirestoreProjectID,
			DatabaseID:           cfg.FirestoreDatabaseID,
			SettlementCollection: cfg.SettlementCollection,
			SettlementDoc:        cfg.SettlementDocID,
			RecordsCollection:    cfg.RecordsCollection,
			CredentialsJSON:      cfg.GoogleCredentialsJSON,
			CredentialsFile:      cfg.GoogleCredentialsFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Firestore client", "error", err, "project", cfg.FirestoreProjectID)
			os.Exit(1)
		}
		docStore = client
		logger.Info("Initialized firestore backend", "project", cfg.FirestoreProjectID)
	default:
		docStore = memstore.NewSeeded(core.DefaultLedger())
		logger.Info("Initialized memory backend")
	}

	// The sqlite mirror is a read fallback when the remote store is down.
	var mirrorReader store.SettlementReader
	if cfg.SQLiteDBPath != "" {
		mirror, err := storage.NewMirror(cfg.SQLiteDBPath)
		if err != nil {
			logger.Warn("Mirror unavailable, continuing without fallback", "error", err, "path", cfg.SQLiteDBPath)
		} else {
			defer mirror.Close()
			mirrorReader = mirror
		}
	}

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, mirror events disabled", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("AMQP mirror events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	policy := retry.Policy{MaxAttempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay}
	gw := gateway.New(docStore, mirrorReader, policy, logger)
	arc := archive.New(gw, docStore, cfg.SnapshotTimeout, logger)

	svc := services.New(gw, arc, cfg.DebounceInterval, events, logger)
	svc.Start(ctx)

	srv := apphttp.NewServer(":"+cfg.Port, svc, cfg.HistoryLimit)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	cache.StartJanitor(ctx, 10*time.Minute, srv.HistoryCache())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		// Flush any debounced edit still waiting for its countdown.
		if err := svc.Close(shutdownCtx); err != nil {
			logger.Error("Final flush failed", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting jeongsan server", "port", cfg.Port, "backend", cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
