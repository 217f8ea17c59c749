package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"jeongsan/internal/core"
	"jeongsan/internal/gateway"
	"jeongsan/internal/retry"
	"jeongsan/internal/store"
	"jeongsan/internal/store/memory"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}
}

// deadStore refuses every call, simulating a dropped connection.
type deadStore struct{}

func (deadStore) GetSettlement(context.Context) (core.Ledger, error) {
	return core.Ledger{}, errors.New("connection refused")
}
func (deadStore) PutSettlement(context.Context, core.Ledger) error {
	return errors.New("connection refused")
}
func (deadStore) GetRecord(context.Context, string) (core.MonthlyRecord, error) {
	return core.MonthlyRecord{}, errors.New("connection refused")
}
func (deadStore) PutRecord(context.Context, core.MonthlyRecord) error {
	return errors.New("connection refused")
}
func (deadStore) ListRecords(context.Context) ([]core.MonthlyRecord, error) {
	return nil, errors.New("connection refused")
}
func (deadStore) Ping(context.Context) error { return errors.New("connection refused") }

var _ store.DocumentStore = deadStore{}

// slowStore answers Ping but hangs forever on record reads.
type slowStore struct{ *memory.Store }

func (s slowStore) GetRecord(ctx context.Context, ym string) (core.MonthlyRecord, error) {
	<-ctx.Done()
	return core.MonthlyRecord{}, ctx.Err()
}

func newArchive(docs store.DocumentStore, callTimeout time.Duration) *Archive {
	gw := gateway.New(docs, nil, fastPolicy(), nil)
	return New(gw, docs, callTimeout, nil)
}

func TestSaveSnapshotCreatesRecord(t *testing.T) {
	mem := memory.NewSeeded(core.DefaultLedger())
	a := newArchive(mem, time.Second)

	rec, err := a.SaveSnapshot(context.Background(), "2025-08")
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if rec.YearMonth != "2025-08" {
		t.Fatalf("YearMonth = %q", rec.YearMonth)
	}
	if rec.TotalMine != 904120 || rec.TotalSiblings != 153089 {
		t.Fatalf("totals = %d/%d", rec.TotalMine, rec.TotalSiblings)
	}
	if rec.SettlementAmount != 375515.5 {
		t.Fatalf("SettlementAmount = %v", rec.SettlementAmount)
	}
	if rec.CreatedAt.IsZero() || rec.SavedAt.IsZero() {
		t.Fatalf("timestamps missing: %+v", rec)
	}
}

func TestSaveSnapshotIsIdempotentPerMonth(t *testing.T) {
	mem := memory.NewSeeded(core.DefaultLedger())
	a := newArchive(mem, time.Second)
	ctx := context.Background()

	first, err := a.SaveSnapshot(ctx, "2025-08")
	if err != nil {
		t.Fatalf("first SaveSnapshot: %v", err)
	}

	// The underlying ledger changes between saves.
	ledger, _ := mem.GetSettlement(ctx)
	ledger.Mine = append(ledger.Mine, core.Item{ID: "new", Name: "internet", Amount: 33000})
	if err := mem.PutSettlement(ctx, ledger); err != nil {
		t.Fatalf("PutSettlement: %v", err)
	}

	second, err := a.SaveSnapshot(ctx, "2025-08")
	if err != nil {
		t.Fatalf("second SaveSnapshot: %v", err)
	}

	records, _ := mem.ListRecords(ctx)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want exactly one per month", len(records))
	}
	if records[0].TotalMine != second.TotalMine {
		t.Fatal("stored record must match the last save")
	}
	if second.TotalMine != first.TotalMine+33000 {
		t.Fatalf("TotalMine = %d, want %d", second.TotalMine, first.TotalMine+33000)
	}
	// Creation time survives the overwrite.
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("CreatedAt changed on overwrite: %v vs %v", second.CreatedAt, first.CreatedAt)
	}
}

func TestSaveSnapshotDefaultsToCurrentMonth(t *testing.T) {
	mem := memory.NewSeeded(core.DefaultLedger())
	a := newArchive(mem, time.Second)
	a.now = func() time.Time { return time.Date(2025, 8, 31, 10, 0, 0, 0, time.UTC) }

	rec, err := a.SaveSnapshot(context.Background(), "")
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if rec.YearMonth != "2025-08" {
		t.Fatalf("YearMonth = %q, want 2025-08", rec.YearMonth)
	}
}

func TestSaveSnapshotRejectsBadKey(t *testing.T) {
	a := newArchive(memory.New(), time.Second)
	if _, err := a.SaveSnapshot(context.Background(), "2025-8"); !errors.Is(err, core.ErrInvalidYearMonth) {
		t.Fatalf("err = %v, want ErrInvalidYearMonth", err)
	}
}

func TestSaveSnapshotFailsFastWhenOffline(t *testing.T) {
	a := newArchive(deadStore{}, time.Second)
	_, err := a.SaveSnapshot(context.Background(), "2025-08")
	if !errors.Is(err, ErrOffline) {
		t.Fatalf("err = %v, want ErrOffline", err)
	}
}

func TestSaveSnapshotMapsTimeouts(t *testing.T) {
	slow := slowStore{memory.NewSeeded(core.DefaultLedger())}
	a := newArchive(slow, 20*time.Millisecond)
	_, err := a.SaveSnapshot(context.Background(), "2025-08")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestListSnapshotsOrdersAndLimits(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	for _, ym := range []string{"2025-07", "2025-09", "2025-08"} {
		if err := mem.PutRecord(ctx, core.MonthlyRecord{YearMonth: ym, SavedAt: time.Now()}); err != nil {
			t.Fatalf("PutRecord: %v", err)
		}
	}
	a := newArchive(mem, time.Second)

	got := a.ListSnapshots(ctx, 0)
	want := []string{"2025-09", "2025-08", "2025-07"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].YearMonth != w {
			t.Fatalf("got[%d] = %q, want %q", i, got[i].YearMonth, w)
		}
	}

	limited := a.ListSnapshots(ctx, 2)
	if len(limited) != 2 || limited[0].YearMonth != "2025-09" || limited[1].YearMonth != "2025-08" {
		t.Fatalf("limited = %+v", limited)
	}
}

func TestListSnapshotsFailsSoft(t *testing.T) {
	a := newArchive(deadStore{}, time.Second)
	got := a.ListSnapshots(context.Background(), 12)
	if got == nil || len(got) != 0 {
		t.Fatalf("got = %#v, want empty non-nil slice", got)
	}
}
