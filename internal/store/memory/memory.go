// Package memory provides an in-process document store. It backs local
// development without credentials and doubles as the fake for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"jeongsan/internal/core"
	"jeongsan/internal/store"
)

type Store struct {
	mu         sync.Mutex
	settlement *core.Ledger
	records    map[string]core.MonthlyRecord
	now        func() time.Time
}

var _ store.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{
		records: make(map[string]core.MonthlyRecord),
		now:     time.Now,
	}
}

// NewSeeded returns a store preloaded with the given settlement document.
func NewSeeded(ledger core.Ledger) *Store {
	s := New()
	l := ledger.Clone()
	s.settlement = &l
	return s
}

func (s *Store) GetSettlement(_ context.Context) (core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settlement == nil {
		return core.Ledger{}, store.ErrNotFound
	}
	return s.settlement.Clone(), nil
}

func (s *Store) PutSettlement(_ context.Context, ledger core.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := ledger.Clone()
	s.settlement = &l
	return nil
}

func (s *Store) GetRecord(_ context.Context, yearMonth string) (core.MonthlyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[yearMonth]
	if !ok {
		return core.MonthlyRecord{}, store.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *Store) PutRecord(_ context.Context, record core.MonthlyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.YearMonth] = cloneRecord(record)
	return nil
}

func (s *Store) ListRecords(_ context.Context) ([]core.MonthlyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.MonthlyRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func cloneRecord(rec core.MonthlyRecord) core.MonthlyRecord {
	rec.MineItems = append([]core.Item(nil), rec.MineItems...)
	rec.SiblingsItems = append([]core.Item(nil), rec.SiblingsItems...)
	return rec
}
