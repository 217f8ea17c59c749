package services

import (
	"context"
	"testing"
	"time"

	"jeongsan/internal/archive"
	"jeongsan/internal/core"
	"jeongsan/internal/gateway"
	"jeongsan/internal/retry"
	"jeongsan/internal/store/memory"
)

func newTestService(t *testing.T, mem *memory.Store, interval time.Duration) *SettlementService {
	t.Helper()
	gw := gateway.New(mem, nil, retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}, nil)
	arc := archive.New(gw, mem, time.Second, nil)
	s := New(gw, arc, interval, nil, nil)
	s.Start(context.Background())
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStartLoadsPersistedLedger(t *testing.T) {
	mem := memory.NewSeeded(core.Ledger{Mine: []core.Item{{ID: "a", Name: "x", Amount: 10}}})
	s := newTestService(t, mem, time.Hour)

	got := s.Ledger()
	if len(got.Mine) != 1 || got.Mine[0].ID != "a" {
		t.Fatalf("unexpected ledger: %+v", got)
	}
	if s.Status().Status != StatusSaved {
		t.Fatalf("status = %v, want saved", s.Status().Status)
	}
}

func TestMutationsDebounceIntoOneSave(t *testing.T) {
	mem := memory.NewSeeded(core.DefaultLedger())
	s := newTestService(t, mem, 30*time.Millisecond)
	ctx := context.Background()

	item, err := s.AddItem(ctx, core.OwnerMine, "internet", 33000, false)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	amount := int64(34000)
	if err := s.UpdateItem(ctx, core.OwnerMine, item.ID, core.ItemPatch{Amount: &amount}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}

	if s.Status().Status != StatusSyncing {
		t.Fatalf("status = %v, want syncing while debouncing", s.Status().Status)
	}

	// Wait for the debounced save to land remotely.
	deadline := time.Now().Add(time.Second)
	for {
		remote, err := mem.GetSettlement(ctx)
		if err == nil {
			if items, _ := remote.Items(core.OwnerMine); len(items) == 7 && items[6].Amount == 34000 {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced save never reached the store")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if s.Status().Status != StatusSaved {
		t.Fatalf("status = %v, want saved after sync", s.Status().Status)
	}
}

func TestUpdateMissingItemIsNoop(t *testing.T) {
	s := newTestService(t, memory.NewSeeded(core.DefaultLedger()), time.Hour)
	name := "gone"
	if err := s.UpdateItem(context.Background(), core.OwnerMine, "no-such-id", core.ItemPatch{Name: &name}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if err := s.DeleteItem(context.Background(), core.OwnerSiblings, "no-such-id"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
}

func TestUnknownOwnerRejected(t *testing.T) {
	s := newTestService(t, memory.NewSeeded(core.DefaultLedger()), time.Hour)
	if _, err := s.AddItem(context.Background(), core.Owner("theirs"), "x", 1, false); err != core.ErrUnknownOwner {
		t.Fatalf("err = %v, want ErrUnknownOwner", err)
	}
	if err := s.UpdateItem(context.Background(), core.Owner(""), "id", core.ItemPatch{}); err != core.ErrUnknownOwner {
		t.Fatalf("err = %v, want ErrUnknownOwner", err)
	}
}

func TestSaveMonthAndHistory(t *testing.T) {
	mem := memory.NewSeeded(core.DefaultLedger())
	s := newTestService(t, mem, time.Hour)
	ctx := context.Background()

	rec, err := s.SaveMonth(ctx, "2025-08")
	if err != nil {
		t.Fatalf("SaveMonth: %v", err)
	}
	if rec.TotalMine != 904120 {
		t.Fatalf("TotalMine = %d", rec.TotalMine)
	}
	if s.Status().Status != StatusSaved {
		t.Fatalf("status = %v, want saved", s.Status().Status)
	}

	if _, err := s.SaveMonth(ctx, "2025-07"); err != nil {
		t.Fatalf("SaveMonth: %v", err)
	}

	history := s.History(ctx, 12)
	if len(history) != 2 || history[0].YearMonth != "2025-08" || history[1].YearMonth != "2025-07" {
		t.Fatalf("history = %+v", history)
	}
}

func TestStatusSubscription(t *testing.T) {
	mem := memory.NewSeeded(core.DefaultLedger())
	s := newTestService(t, mem, time.Hour)

	ch, cancel := s.SubscribeStatus()
	defer cancel()

	if _, err := s.SaveMonth(context.Background(), "2025-08"); err != nil {
		t.Fatalf("SaveMonth: %v", err)
	}

	// First transition of a snapshot save is syncing.
	select {
	case update := <-ch:
		if update.Status != StatusSyncing {
			t.Fatalf("first transition = %v, want syncing", update.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("no status update received")
	}
	select {
	case update := <-ch:
		if update.Status != StatusSaved {
			t.Fatalf("second transition = %v, want saved", update.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("no second status update")
	}
}

func TestStatusErrorString(t *testing.T) {
	u := StatusUpdate{Status: StatusError, Reason: "save failed"}
	if u.String() != "error:save failed" {
		t.Fatalf("String() = %q", u.String())
	}
	if (StatusUpdate{Status: StatusSaved}).String() != "saved" {
		t.Fatalf("saved String() wrong")
	}
}
