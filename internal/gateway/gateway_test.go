package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"jeongsan/internal/core"
	"jeongsan/internal/retry"
	"jeongsan/internal/store"
	"jeongsan/internal/store/memory"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}
}

// flakyStore wraps the memory store and fails a configurable number of
// calls before letting them through.
type flakyStore struct {
	*memory.Store
	failGets int
	failPuts int
	getCalls int
	putCalls int
}

func (f *flakyStore) GetSettlement(ctx context.Context) (core.Ledger, error) {
	f.getCalls++
	if f.failGets > 0 {
		f.failGets--
		return core.Ledger{}, errors.New("connection refused")
	}
	return f.Store.GetSettlement(ctx)
}

func (f *flakyStore) PutSettlement(ctx context.Context, ledger core.Ledger) error {
	f.putCalls++
	if f.failPuts > 0 {
		f.failPuts--
		return errors.New("connection refused")
	}
	return f.Store.PutSettlement(ctx, ledger)
}

func TestLoadReturnsRemoteLedger(t *testing.T) {
	seeded := core.Ledger{Mine: []core.Item{{ID: "a", Name: "x", Amount: 42}}}
	g := New(memory.NewSeeded(seeded), nil, fastPolicy(), nil)

	got := g.Load(context.Background())
	if len(got.Mine) != 1 || got.Mine[0].Amount != 42 {
		t.Fatalf("unexpected ledger: %+v", got)
	}
}

func TestLoadSelfHealsMissingDocument(t *testing.T) {
	mem := memory.New()
	g := New(mem, nil, fastPolicy(), nil)

	got := g.Load(context.Background())
	if got.IsEmpty() {
		t.Fatal("load must fall back to the default ledger")
	}

	// The defaults must now exist remotely.
	stored, err := mem.GetSettlement(context.Background())
	if err != nil {
		t.Fatalf("settlement document was not initialized: %v", err)
	}
	if stored.Totals().TotalMine != got.Totals().TotalMine {
		t.Fatalf("stored ledger differs from returned defaults")
	}
}

func TestLoadDoesNotRetryMissingDocument(t *testing.T) {
	fs := &flakyStore{Store: memory.New()}
	g := New(fs, nil, retry.Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}, nil)

	start := time.Now()
	got := g.Load(context.Background())
	elapsed := time.Since(start)

	if got.IsEmpty() {
		t.Fatal("load must self-heal to the defaults")
	}
	if fs.getCalls != 1 {
		t.Fatalf("getCalls = %d, want exactly 1; absence is definitive and must not be retried", fs.getCalls)
	}
	if elapsed >= 100*time.Millisecond {
		t.Fatalf("load took %v, must not wait out the backoff for a missing document", elapsed)
	}
}

func TestLoadRetriesThenSucceeds(t *testing.T) {
	fs := &flakyStore{Store: memory.NewSeeded(core.DefaultLedger()), failGets: 1}
	g := New(fs, nil, fastPolicy(), nil)

	got := g.Load(context.Background())
	if got.IsEmpty() {
		t.Fatal("expected remote ledger after retry")
	}
	if fs.getCalls != 2 {
		t.Fatalf("getCalls = %d, want 2", fs.getCalls)
	}
}

func TestLoadFallsBackToDefaultsWhenUnreachable(t *testing.T) {
	fs := &flakyStore{Store: memory.New(), failGets: 99}
	g := New(fs, nil, fastPolicy(), nil)

	got := g.Load(context.Background())
	if got.IsEmpty() {
		t.Fatal("load must never return an empty ledger")
	}
	if fs.getCalls != 2 {
		t.Fatalf("getCalls = %d, want retries exhausted at 2", fs.getCalls)
	}
}

func TestLoadPrefersMirrorOverDefaults(t *testing.T) {
	fs := &flakyStore{Store: memory.New(), failGets: 99}
	mirror := memory.NewSeeded(core.Ledger{Mine: []core.Item{{ID: "cached", Name: "from mirror", Amount: 7}}})
	g := New(fs, mirror, fastPolicy(), nil)

	got := g.Load(context.Background())
	if len(got.Mine) != 1 || got.Mine[0].ID != "cached" {
		t.Fatalf("expected mirror ledger, got %+v", got)
	}
}

func TestSaveRetriesThenSucceeds(t *testing.T) {
	fs := &flakyStore{Store: memory.New(), failPuts: 1}
	g := New(fs, nil, fastPolicy(), nil)

	if err := g.Save(context.Background(), core.DefaultLedger()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if fs.putCalls != 2 {
		t.Fatalf("putCalls = %d, want 2", fs.putCalls)
	}
}

func TestSaveFailsAfterRetriesExhausted(t *testing.T) {
	fs := &flakyStore{Store: memory.New(), failPuts: 99}
	g := New(fs, nil, fastPolicy(), nil)

	err := g.Save(context.Background(), core.DefaultLedger())
	if !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("err = %v, want ErrSaveFailed", err)
	}
	if !errors.Is(err, retry.ErrMaxAttempts) {
		t.Fatalf("err = %v, want wrapped ErrMaxAttempts", err)
	}
}

func TestLoadTreatsEmptyDocumentAsDefaults(t *testing.T) {
	// A document that exists but carries no items behaves like the
	// original missing-fields case: the defaults win.
	g := New(memory.NewSeeded(core.Ledger{}), nil, fastPolicy(), nil)
	got := g.Load(context.Background())
	if got.IsEmpty() {
		t.Fatal("empty remote document must fall back to defaults")
	}
}

var _ store.DocumentStore = (*flakyStore)(nil)
