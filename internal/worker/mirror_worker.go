// Package worker keeps the local sqlite mirror in step with the remote
// document store. Events arriving over AMQP apply individual writes;
// a periodic reconcile pulls the full remote state to cover lost
// messages and worker downtime.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jeongsan/internal/amqp"
	"jeongsan/internal/core"
	"jeongsan/internal/storage"
	"jeongsan/internal/store"
)

// RemoteReader is the slice of the remote store the worker needs for
// reconciliation.
type RemoteReader interface {
	store.SettlementReader
	store.RecordReader
}

type MirrorWorker struct {
	mirror *storage.Mirror
	remote RemoteReader
}

func NewMirrorWorker(mirror *storage.Mirror, remote RemoteReader) *MirrorWorker {
	return &MirrorWorker{
		mirror: mirror,
		remote: remote,
	}
}

// HandleEvent applies a single mirror event. Unknown kinds are dropped
// with a warning so stale producers cannot wedge the queue.
func (w *MirrorWorker) HandleEvent(ctx context.Context, env *amqp.Envelope) error {
	switch env.Kind {
	case amqp.KindSettlementSaved:
		msg, err := env.DecodeSettlementSaved()
		if err != nil {
			return fmt.Errorf("decode settlement event: %w", err)
		}
		return w.applySettlement(ctx, msg.Ledger, msg.SavedAt)

	case amqp.KindRecordSaved:
		msg, err := env.DecodeRecordSaved()
		if err != nil {
			return fmt.Errorf("decode record event: %w", err)
		}
		return w.applyRecord(ctx, msg.Record)

	default:
		slog.WarnContext(ctx, "Dropping event of unknown kind", "kind", env.Kind)
		return nil
	}
}

func (w *MirrorWorker) applySettlement(ctx context.Context, ledger core.Ledger, savedAt time.Time) error {
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	if err := w.mirror.UpsertSettlement(ctx, ledger, savedAt); err != nil {
		return fmt.Errorf("mirror settlement: %w", err)
	}
	return nil
}

func (w *MirrorWorker) applyRecord(ctx context.Context, rec core.MonthlyRecord) error {
	if err := w.mirror.UpsertRecord(ctx, rec); err != nil {
		return fmt.Errorf("mirror record %s: %w", rec.YearMonth, err)
	}
	return nil
}

// Reconcile pulls the full remote state into the mirror. A missing
// remote settlement document is not an error; it simply has not been
// written yet.
func (w *MirrorWorker) Reconcile(ctx context.Context) error {
	start := time.Now()

	ledger, err := w.remote.GetSettlement(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		slog.InfoContext(ctx, "No remote settlement document yet, skipping")
	case err != nil:
		return fmt.Errorf("fetch remote settlement: %w", err)
	default:
		if err := w.mirror.UpsertSettlement(ctx, ledger, time.Now()); err != nil {
			return fmt.Errorf("mirror settlement: %w", err)
		}
	}

	records, err := w.remote.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("list remote records: %w", err)
	}

	mirrored := 0
	for _, rec := range records {
		if err := w.mirror.UpsertRecord(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror record",
				"year_month", rec.YearMonth, "error", err)
			continue
		}
		mirrored++
	}

	slog.InfoContext(ctx, "Reconcile completed",
		"records_total", len(records),
		"records_mirrored", mirrored,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// RunPeriodicReconcile reconciles on the given interval until the
// context ends. Failures are logged and retried on the next tick.
func (w *MirrorWorker) RunPeriodicReconcile(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic reconcile failed", "error", err)
			}
		}
	}
}
