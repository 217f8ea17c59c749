package firestore

import (
	"testing"
	"time"

	"jeongsan/internal/core"

	gfirestore "google.golang.org/api/firestore/v1"
)

func TestLedgerFieldsRoundTrip(t *testing.T) {
	ledger := core.Ledger{
		Mine: []core.Item{
			{ID: "rent", Name: "월세", Amount: 250000, Fixed: true},
			{ID: "water", Name: "수도(물)", Amount: 0},
		},
		Siblings: []core.Item{
			{ID: "sib1", Name: "재경(변동비)", Amount: 153089},
		},
	}

	got := ledgerFromFields(ledgerToFields(ledger))

	if len(got.Mine) != 2 || len(got.Siblings) != 1 {
		t.Fatalf("unexpected ledger: %+v", got)
	}
	if got.Mine[0] != ledger.Mine[0] {
		t.Fatalf("mine[0] = %+v, want %+v", got.Mine[0], ledger.Mine[0])
	}
	// Zero amounts must survive the trip; omitempty would drop them
	// without the force-send markers.
	if got.Mine[1].Amount != 0 || got.Mine[1].ID != "water" {
		t.Fatalf("mine[1] = %+v", got.Mine[1])
	}
}

func TestLedgerFromFieldsMissing(t *testing.T) {
	got := ledgerFromFields(map[string]gfirestore.Value{})
	if len(got.Mine) != 0 || len(got.Siblings) != 0 {
		t.Fatalf("expected empty ledger, got %+v", got)
	}
}

func TestLedgerFromFieldsSkipsMalformedItems(t *testing.T) {
	fields := map[string]gfirestore.Value{
		"mine": {ArrayValue: &gfirestore.ArrayValue{Values: []*gfirestore.Value{
			{StringValue: "not a map"},
			itemToValue(core.Item{ID: "ok", Name: "x", Amount: 5}),
			{MapValue: &gfirestore.MapValue{Fields: map[string]gfirestore.Value{}}}, // no id
		}}},
	}
	got := ledgerFromFields(fields)
	if len(got.Mine) != 1 || got.Mine[0].ID != "ok" {
		t.Fatalf("unexpected mine list: %+v", got.Mine)
	}
}

func TestRecordFieldsRoundTrip(t *testing.T) {
	savedAt := time.Date(2025, 8, 15, 9, 30, 0, 0, time.UTC)
	createdAt := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	rec := core.MonthlyRecord{
		YearMonth:        "2025-08",
		TotalMine:        904120,
		TotalSiblings:    153089,
		SettlementAmount: 375515.5,
		MineItems:        []core.Item{{ID: "rent", Name: "월세", Amount: 250000, Fixed: true}},
		SiblingsItems:    []core.Item{{ID: "sib1", Name: "재경(변동비)", Amount: 153089}},
		CreatedAt:        createdAt,
		SavedAt:          savedAt,
	}

	got := recordFromFields(recordToFields(rec))

	if got.YearMonth != rec.YearMonth {
		t.Fatalf("YearMonth = %q", got.YearMonth)
	}
	if got.TotalMine != rec.TotalMine || got.TotalSiblings != rec.TotalSiblings {
		t.Fatalf("totals = %d/%d", got.TotalMine, got.TotalSiblings)
	}
	if got.SettlementAmount != 375515.5 {
		t.Fatalf("SettlementAmount = %v", got.SettlementAmount)
	}
	if !got.SavedAt.Equal(savedAt) || !got.CreatedAt.Equal(createdAt) {
		t.Fatalf("timestamps = %v / %v", got.SavedAt, got.CreatedAt)
	}
	if len(got.MineItems) != 1 || got.MineItems[0] != rec.MineItems[0] {
		t.Fatalf("MineItems = %+v", got.MineItems)
	}
}

func TestRecordFieldsOmitsZeroCreatedAt(t *testing.T) {
	rec := core.MonthlyRecord{YearMonth: "2025-08", SavedAt: time.Now()}
	fields := recordToFields(rec)
	if _, ok := fields["createdAt"]; ok {
		t.Fatal("zero createdAt must not be written")
	}
}

func TestIntFromValueAcceptsDoubles(t *testing.T) {
	if got := intFromValue(gfirestore.Value{DoubleValue: 153089}); got != 153089 {
		t.Fatalf("intFromValue = %d", got)
	}
	if got := intFromValue(gfirestore.Value{IntegerValue: 42}); got != 42 {
		t.Fatalf("intFromValue = %d", got)
	}
	if got := intFromValue(gfirestore.Value{StringValue: "nope"}); got != 0 {
		t.Fatalf("intFromValue = %d", got)
	}
}
