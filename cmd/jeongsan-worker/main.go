package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"jeongsan/internal/amqp"
	"jeongsan/internal/config"
	applog "jeongsan/internal/log"
	"jeongsan/internal/storage"
	fsstore "jeongsan/internal/store/firestore"
	memstore "jeongsan/internal/store/memory"
	"jeongsan/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentMirror)
	applog.SetDefault(logger)

	logger.Info("Starting jeongsan-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the mirror worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mirror, err := storage.NewMirror(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open mirror database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer mirror.Close()

	var remote worker.RemoteReader
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
		remote = client
		logger.Info("Reconciling against firestore", "project", cfg.FirestoreProjectID)
	default:
		// Dev mode: events still mirror, reconcile is a no-op source.
		remote = memstore.New()
		logger.Info("Reconciling against memory backend")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.NewMirrorWorker(mirror, remote)

	// Catch up on anything missed while the worker was down.
	if err := w.Reconcile(ctx); err != nil {
		logger.Error("Startup reconcile failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.Consume(ctx, w.HandleEvent)
	})
	g.Go(func() error {
		return w.RunPeriodicReconcile(ctx, cfg.ReconcileInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
