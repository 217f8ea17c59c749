// Package archive captures dated copies of the persisted ledger, one per
// calendar month, and serves the ordered history for trend display.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jeongsan/internal/core"
	"jeongsan/internal/gateway"
	applog "jeongsan/internal/log"
	"jeongsan/internal/store"
)

var (
	// ErrOffline reports that the cheap connectivity probe failed; the
	// save was abandoned before any expensive call.
	ErrOffline = errors.New("remote store unreachable")

	// ErrTimeout reports that an individual remote call exceeded its
	// time bound. Surfaced to the user as a network-too-slow message.
	ErrTimeout = errors.New("remote store too slow")
)

// DefaultCallTimeout bounds each individual remote call in a snapshot
// save sequence.
const DefaultCallTimeout = 10 * time.Second

// DefaultHistoryLimit is how many months the history view shows.
const DefaultHistoryLimit = 12

type recordStore interface {
	store.RecordReader
	store.RecordWriter
}

type Archive struct {
	gateway     *gateway.Gateway
	records     recordStore
	callTimeout time.Duration
	now         func() time.Time
	logger      *applog.Logger
}

func New(gw *gateway.Gateway, records recordStore, callTimeout time.Duration, logger *applog.Logger) *Archive {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentArchive})
	}
	return &Archive{
		gateway:     gw,
		records:     records,
		callTimeout: callTimeout,
		now:         time.Now,
		logger:      logger.WithComponent(applog.ComponentArchive),
	}
}

// SaveSnapshot archives the persisted ledger under the given month key,
// defaulting to the current calendar month. The sequence is: probe
// connectivity, re-fetch the authoritative ledger from the gateway (never
// the possibly-stale in-memory copy), compute totals, then create or
// overwrite the month's record. Repeated saves within one month are
// idempotent in effect: the final state depends only on the last save.
func (a *Archive) SaveSnapshot(ctx context.Context, yearMonth string) (core.MonthlyRecord, error) {
	if yearMonth == "" {
		yearMonth = core.YearMonthOf(a.now())
	}
	if err := core.ValidateYearMonth(yearMonth); err != nil {
		return core.MonthlyRecord{}, err
	}

	logger := a.logger.With(applog.FieldYearMonth, yearMonth)

	if err := a.bounded(ctx, func(ctx context.Context) error {
		return a.gateway.Probe(ctx)
	}); err != nil {
		if errors.Is(err, ErrTimeout) {
			return core.MonthlyRecord{}, err
		}
		return core.MonthlyRecord{}, fmt.Errorf("%w: %w", ErrOffline, err)
	}

	var ledger core.Ledger
	if err := a.bounded(ctx, func(ctx context.Context) error {
		ledger = a.gateway.Load(ctx)
		return nil
	}); err != nil {
		return core.MonthlyRecord{}, err
	}

	record := core.NewMonthlyRecord(yearMonth, ledger, a.now())

	var existing core.MonthlyRecord
	err := a.bounded(ctx, func(ctx context.Context) error {
		got, err := a.records.GetRecord(ctx, yearMonth)
		if err != nil {
			return err
		}
		existing = got
		return nil
	})
	switch {
	case err == nil:
		// Overwrite in place, keeping the month's original creation time.
		record.CreatedAt = existing.CreatedAt
		if record.CreatedAt.IsZero() {
			record.CreatedAt = existing.SavedAt
		}
		logger.InfoContext(ctx, "Updating existing monthly record")
	case errors.Is(err, store.ErrNotFound):
		record.CreatedAt = record.SavedAt
		logger.InfoContext(ctx, "Creating monthly record")
	default:
		return core.MonthlyRecord{}, err
	}

	if err := a.bounded(ctx, func(ctx context.Context) error {
		return a.records.PutRecord(ctx, record)
	}); err != nil {
		return core.MonthlyRecord{}, err
	}

	logger.InfoContext(ctx, "Monthly record saved",
		"total_mine", record.TotalMine,
		"total_siblings", record.TotalSiblings,
		"settlement_amount", record.SettlementAmount)
	return record, nil
}

// ListSnapshots returns up to limit records, newest month first. It fails
// soft: any retrieval error yields an empty history so the caller can
// render an empty state.
func (a *Archive) ListSnapshots(ctx context.Context, limit int) []core.MonthlyRecord {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var records []core.MonthlyRecord
	err := a.bounded(ctx, func(ctx context.Context) error {
		got, err := a.records.ListRecords(ctx)
		if err != nil {
			return err
		}
		records = got
		return nil
	})
	if err != nil {
		a.logger.WarnContext(ctx, "History fetch failed, returning empty list", "error", err)
		return []core.MonthlyRecord{}
	}

	core.SortRecordsDesc(records)
	if len(records) > limit {
		records = records[:limit]
	}
	return records
}

// bounded runs one remote call under the per-call deadline and maps a
// blown deadline to ErrTimeout.
func (a *Archive) bounded(ctx context.Context, op func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	err := op(callCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
