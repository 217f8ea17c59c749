// Package services hosts the settlement service: the single owner of the
// in-memory ledger, wired to the debounced scheduler, the persistence
// gateway and the monthly archive. The UI layer talks to this and to
// nothing below it.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"jeongsan/internal/archive"
	"jeongsan/internal/core"
	"jeongsan/internal/debounce"
	"jeongsan/internal/gateway"
	applog "jeongsan/internal/log"
)

// EventPublisher forwards persisted state to the mirror pipeline. A nil
// publisher disables mirroring without touching the save path.
type EventPublisher interface {
	PublishSettlementSaved(ctx context.Context, ledger core.Ledger) error
	PublishRecordSaved(ctx context.Context, record core.MonthlyRecord) error
}

type SettlementService struct {
	gateway *gateway.Gateway
	archive *archive.Archive
	events  EventPublisher
	status  *statusTracker
	logger  *applog.Logger

	mu        sync.Mutex
	ledger    core.Ledger
	scheduler *debounce.Scheduler
}

// New constructs the service. debounceInterval controls how long edits
// coalesce before the gateway persists them; zero means the default.
func New(gw *gateway.Gateway, arc *archive.Archive, debounceInterval time.Duration, events EventPublisher, logger *applog.Logger) *SettlementService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	s := &SettlementService{
		gateway: gw,
		archive: arc,
		events:  events,
		status:  newStatusTracker(),
		logger:  logger.WithComponent("settlement"),
	}
	s.scheduler = debounce.NewScheduler(debounceInterval, s.persist, logger)
	return s
}

// Start loads the persisted ledger (or its fallback) into memory. Safe to
// call exactly once before serving traffic.
func (s *SettlementService) Start(ctx context.Context) {
	ledger := s.gateway.Load(ctx)
	s.mu.Lock()
	s.ledger = ledger
	s.mu.Unlock()

	if err := s.gateway.Probe(ctx); err != nil {
		s.status.set(StatusOffline, "")
		s.logger.WarnContext(ctx, "Starting in offline mode", "error", err)
		return
	}
	s.status.set(StatusSaved, "")
	s.logger.InfoContext(ctx, "Settlement loaded",
		"mine_items", len(ledger.Mine),
		"siblings_items", len(ledger.Siblings))
}

// Close flushes any pending debounced save and stops the scheduler.
func (s *SettlementService) Close(ctx context.Context) error {
	err := s.scheduler.Flush(ctx)
	s.scheduler.Stop()
	return err
}

// Ledger returns a copy of the current ledger for rendering.
func (s *SettlementService) Ledger() core.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Clone()
}

// Totals recomputes the derived sums from the current ledger.
func (s *SettlementService) Totals() core.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Totals()
}

// Status returns the latest gateway/archive transition.
func (s *SettlementService) Status() StatusUpdate {
	return s.status.Current()
}

// SubscribeStatus exposes the transition stream for the UI banner.
func (s *SettlementService) SubscribeStatus() (<-chan StatusUpdate, func()) {
	return s.status.Subscribe()
}

// AddItem appends a new expense row and schedules a sync.
func (s *SettlementService) AddItem(ctx context.Context, owner core.Owner, name string, amount int64, fixed bool) (core.Item, error) {
	s.mu.Lock()
	id, err := s.ledger.AddItem(owner, name, amount, fixed)
	if err != nil {
		s.mu.Unlock()
		return core.Item{}, err
	}
	items, _ := s.ledger.Items(owner)
	item := items[len(items)-1]
	s.scheduleLocked()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Item added",
		applog.FieldOwner, string(owner),
		applog.FieldItemID, id,
		applog.FieldAmount, amount)
	return item, nil
}

// UpdateItem patches an existing row. A missing id is a silent no-op so
// an update racing a delete cannot fail the request.
func (s *SettlementService) UpdateItem(ctx context.Context, owner core.Owner, id string, patch core.ItemPatch) error {
	if !owner.Valid() {
		return core.ErrUnknownOwner
	}
	s.mu.Lock()
	changed := s.ledger.UpdateItem(owner, id, patch)
	if changed {
		s.scheduleLocked()
	}
	s.mu.Unlock()

	if changed {
		s.logger.InfoContext(ctx, "Item updated", applog.FieldOwner, string(owner), applog.FieldItemID, id)
	}
	return nil
}

// DeleteItem removes a row. A missing id is a silent no-op.
func (s *SettlementService) DeleteItem(ctx context.Context, owner core.Owner, id string) error {
	if !owner.Valid() {
		return core.ErrUnknownOwner
	}
	s.mu.Lock()
	changed := s.ledger.DeleteItem(owner, id)
	if changed {
		s.scheduleLocked()
	}
	s.mu.Unlock()

	if changed {
		s.logger.InfoContext(ctx, "Item deleted", applog.FieldOwner, string(owner), applog.FieldItemID, id)
	}
	return nil
}

// SaveMonth archives the persisted ledger for the given month (current
// month when empty) via the snapshot archive.
func (s *SettlementService) SaveMonth(ctx context.Context, yearMonth string) (core.MonthlyRecord, error) {
	s.status.set(StatusSyncing, "")
	record, err := s.archive.SaveSnapshot(ctx, yearMonth)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrOffline):
			s.status.set(StatusOffline, "")
		default:
			s.status.set(StatusError, err.Error())
		}
		return core.MonthlyRecord{}, err
	}
	s.status.set(StatusSaved, "")

	if s.events != nil {
		if pubErr := s.events.PublishRecordSaved(ctx, record); pubErr != nil {
			s.logger.WarnContext(ctx, "Record event publish failed", "error", pubErr)
		}
	}
	return record, nil
}

// History returns up to limit archived months, newest first. Never fails.
func (s *SettlementService) History(ctx context.Context, limit int) []core.MonthlyRecord {
	return s.archive.ListSnapshots(ctx, limit)
}

// scheduleLocked hands the current ledger to the debounce scheduler.
// Caller holds s.mu.
func (s *SettlementService) scheduleLocked() {
	s.status.set(StatusSyncing, "")
	s.scheduler.Schedule(s.ledger)
}

// persist is the scheduler's save callback: exactly one call per elapsed
// countdown, carrying the last scheduled snapshot.
func (s *SettlementService) persist(ctx context.Context, ledger core.Ledger) error {
	if err := s.gateway.Save(ctx, ledger); err != nil {
		s.status.set(StatusError, "save failed")
		return err
	}
	s.status.set(StatusSaved, "")

	if s.events != nil {
		if err := s.events.PublishSettlementSaved(ctx, ledger); err != nil {
			s.logger.WarnContext(ctx, "Settlement event publish failed", "error", err)
		}
	}
	return nil
}
