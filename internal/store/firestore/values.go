package firestore

import (
	"time"

	"jeongsan/internal/core"

	gfirestore "google.golang.org/api/firestore/v1"
)

// Firestore's REST representation is a typed value tree. The helpers here
// convert between it and the domain types, decoding defensively: a field
// with the wrong type reads as its zero value rather than failing the
// whole document.

func stringValue(s string) gfirestore.Value {
	return gfirestore.Value{StringValue: s, ForceSendFields: []string{"StringValue"}}
}

func intValue(n int64) gfirestore.Value {
	return gfirestore.Value{IntegerValue: n, ForceSendFields: []string{"IntegerValue"}}
}

func doubleValue(f float64) gfirestore.Value {
	return gfirestore.Value{DoubleValue: f, ForceSendFields: []string{"DoubleValue"}}
}

func boolValue(b bool) gfirestore.Value {
	return gfirestore.Value{BooleanValue: b, ForceSendFields: []string{"BooleanValue"}}
}

func timeValue(t time.Time) gfirestore.Value {
	return gfirestore.Value{TimestampValue: t.UTC().Format(time.RFC3339Nano), ForceSendFields: []string{"TimestampValue"}}
}

func itemToValue(it core.Item) *gfirestore.Value {
	return &gfirestore.Value{MapValue: &gfirestore.MapValue{Fields: map[string]gfirestore.Value{
		"id":     stringValue(it.ID),
		"name":   stringValue(it.Name),
		"amount": intValue(it.Amount),
		"fixed":  boolValue(it.Fixed),
	}}}
}

func itemsToValue(items []core.Item) gfirestore.Value {
	values := make([]*gfirestore.Value, 0, len(items))
	for _, it := range items {
		values = append(values, itemToValue(it))
	}
	return gfirestore.Value{ArrayValue: &gfirestore.ArrayValue{Values: values}}
}

func itemFromValue(v *gfirestore.Value) (core.Item, bool) {
	if v == nil || v.MapValue == nil {
		return core.Item{}, false
	}
	fields := v.MapValue.Fields
	it := core.Item{
		ID:     fields["id"].StringValue,
		Name:   fields["name"].StringValue,
		Amount: intFromValue(fields["amount"]),
		Fixed:  fields["fixed"].BooleanValue,
	}
	if it.ID == "" {
		return core.Item{}, false
	}
	return it, true
}

func itemsFromValue(v gfirestore.Value, ok bool) []core.Item {
	if !ok || v.ArrayValue == nil {
		return nil
	}
	out := make([]core.Item, 0, len(v.ArrayValue.Values))
	for _, elem := range v.ArrayValue.Values {
		if it, ok := itemFromValue(elem); ok {
			out = append(out, it)
		}
	}
	return out
}

// intFromValue accepts both integer and double encodings; amounts written
// by other clients sometimes arrive as doubles.
func intFromValue(v gfirestore.Value) int64 {
	if v.IntegerValue != 0 {
		return v.IntegerValue
	}
	if v.DoubleValue != 0 {
		return int64(v.DoubleValue)
	}
	return 0
}

func floatFromValue(v gfirestore.Value) float64 {
	if v.DoubleValue != 0 {
		return v.DoubleValue
	}
	return float64(v.IntegerValue)
}

func timeFromValue(v gfirestore.Value) time.Time {
	if v.TimestampValue == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v.TimestampValue)
	if err != nil {
		return time.Time{}
	}
	return t
}

func ledgerToFields(ledger core.Ledger) map[string]gfirestore.Value {
	return map[string]gfirestore.Value{
		"mine":     itemsToValue(ledger.Mine),
		"siblings": itemsToValue(ledger.Siblings),
	}
}

func ledgerFromFields(fields map[string]gfirestore.Value) core.Ledger {
	mine, okMine := fields["mine"]
	siblings, okSiblings := fields["siblings"]
	return core.Ledger{
		Mine:     itemsFromValue(mine, okMine),
		Siblings: itemsFromValue(siblings, okSiblings),
	}
}

func recordToFields(rec core.MonthlyRecord) map[string]gfirestore.Value {
	fields := map[string]gfirestore.Value{
		"yearMonth":        stringValue(rec.YearMonth),
		"totalMine":        intValue(rec.TotalMine),
		"totalSiblings":    intValue(rec.TotalSiblings),
		"settlementAmount": doubleValue(rec.SettlementAmount),
		"mineItems":        itemsToValue(rec.MineItems),
		"siblingsItems":    itemsToValue(rec.SiblingsItems),
		"savedAt":          timeValue(rec.SavedAt),
	}
	if !rec.CreatedAt.IsZero() {
		fields["createdAt"] = timeValue(rec.CreatedAt)
	}
	return fields
}

func recordFromFields(fields map[string]gfirestore.Value) core.MonthlyRecord {
	mineItems, okMine := fields["mineItems"]
	siblingsItems, okSiblings := fields["siblingsItems"]
	return core.MonthlyRecord{
		YearMonth:        fields["yearMonth"].StringValue,
		TotalMine:        intFromValue(fields["totalMine"]),
		TotalSiblings:    intFromValue(fields["totalSiblings"]),
		SettlementAmount: floatFromValue(fields["settlementAmount"]),
		MineItems:        itemsFromValue(mineItems, okMine),
		SiblingsItems:    itemsFromValue(siblingsItems, okSiblings),
		CreatedAt:        timeFromValue(fields["createdAt"]),
		SavedAt:          timeFromValue(fields["savedAt"]),
	}
}
