package core

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// OwnerMine is the party whose name the shared bills are under.
	OwnerMine Owner = "mine"
	// OwnerSiblings is the other party of the split.
	OwnerSiblings Owner = "siblings"
)

type (
	// Owner identifies which of the two parties an item belongs to.
	Owner string

	// Item is a single named expense line. Amount is in whole currency
	// units (no minor unit). Fixed items are protected from casual
	// deletion in the UI but carry no computational difference.
	Item struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Amount int64  `json:"amount"`
		Fixed  bool   `json:"fixed"`
	}

	// Ledger holds the two item lists for the current settlement period.
	// Item ids are unique within each list, not necessarily across lists.
	Ledger struct {
		Mine     []Item `json:"mine"`
		Siblings []Item `json:"siblings"`
	}

	// ItemPatch is a partial update for an item. Nil fields are left
	// unchanged.
	ItemPatch struct {
		Name   *string
		Amount *int64
		Fixed  *bool
	}

	// Totals are the derived sums and the net transfer amount.
	// Net is positive when siblings owes mine, negative the other way
	// around, and may be a half unit even though item amounts are whole.
	Totals struct {
		TotalMine     int64   `json:"totalMine"`
		TotalSiblings int64   `json:"totalSiblings"`
		Net           float64 `json:"net"`
	}
)

var (
	ErrUnknownOwner  = errors.New("unknown owner")
	ErrInvalidAmount = errors.New("invalid amount")
)

// DefaultItemName seeds newly added rows.
const DefaultItemName = "새 항목"

// ParseOwner converts a free-form owner string to an Owner.
func ParseOwner(s string) (Owner, error) {
	switch Owner(strings.TrimSpace(strings.ToLower(s))) {
	case OwnerMine:
		return OwnerMine, nil
	case OwnerSiblings:
		return OwnerSiblings, nil
	}
	return "", ErrUnknownOwner
}

// Valid reports whether the owner is one of the two known parties.
func (o Owner) Valid() bool {
	return o == OwnerMine || o == OwnerSiblings
}

// Items returns the list for the given owner. The second return is false
// for an unknown owner.
func (l *Ledger) Items(owner Owner) ([]Item, bool) {
	switch owner {
	case OwnerMine:
		return l.Mine, true
	case OwnerSiblings:
		return l.Siblings, true
	}
	return nil, false
}

func (l *Ledger) setItems(owner Owner, items []Item) {
	if owner == OwnerMine {
		l.Mine = items
		return
	}
	l.Siblings = items
}

// AddItem appends a new item with a fresh unique id and returns the id.
// Unknown owners are rejected; adding otherwise never fails.
func (l *Ledger) AddItem(owner Owner, name string, amount int64, fixed bool) (string, error) {
	items, ok := l.Items(owner)
	if !ok {
		return "", ErrUnknownOwner
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultItemName
	}
	id := uuid.NewString()
	l.setItems(owner, append(items, Item{ID: id, Name: name, Amount: amount, Fixed: fixed}))
	return id, nil
}

// UpdateItem applies the patch to the matching item. A missing id is a
// no-op rather than an error: the UI may race an update against a delete.
// Returns whether an item was changed.
func (l *Ledger) UpdateItem(owner Owner, id string, patch ItemPatch) bool {
	items, ok := l.Items(owner)
	if !ok {
		return false
	}
	for i := range items {
		if items[i].ID != id {
			continue
		}
		if patch.Name != nil {
			items[i].Name = *patch.Name
		}
		if patch.Amount != nil {
			items[i].Amount = *patch.Amount
		}
		if patch.Fixed != nil {
			items[i].Fixed = *patch.Fixed
		}
		return true
	}
	return false
}

// DeleteItem removes the matching item. A missing id is a no-op.
// Returns whether an item was removed.
func (l *Ledger) DeleteItem(owner Owner, id string) bool {
	items, ok := l.Items(owner)
	if !ok {
		return false
	}
	for i := range items {
		if items[i].ID == id {
			l.setItems(owner, append(items[:i:i], items[i+1:]...))
			return true
		}
	}
	return false
}

// Totals recomputes the derived sums from the current lists. Never stored;
// always recomputed on read.
func (l *Ledger) Totals() Totals {
	mine := sumAmounts(l.Mine)
	siblings := sumAmounts(l.Siblings)
	return Totals{
		TotalMine:     mine,
		TotalSiblings: siblings,
		Net:           float64(mine-siblings) / 2,
	}
}

func sumAmounts(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.Amount
	}
	return total
}

// Clone returns a deep copy, safe to hand to another goroutine or to
// snapshot into a monthly record.
func (l *Ledger) Clone() Ledger {
	return Ledger{
		Mine:     append([]Item(nil), l.Mine...),
		Siblings: append([]Item(nil), l.Siblings...),
	}
}

// IsEmpty reports whether both lists have no items.
func (l *Ledger) IsEmpty() bool {
	return len(l.Mine) == 0 && len(l.Siblings) == 0
}

// SanitizeAmount normalizes free-form amount text to a whole-unit value.
// Thousands separators and surrounding whitespace are stripped; an empty
// string coerces to 0. Anything that is not purely digits after
// stripping, or that overflows int64, is rejected so a stray keystroke
// never silently changes the amount.
func SanitizeAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return n, nil
}
