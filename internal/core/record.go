package core

import (
	"errors"
	"regexp"
	"sort"
	"time"
)

// MonthlyRecord is a point-in-time copy of the ledger for one calendar
// month, keyed by YearMonth. Overwritten wholesale on repeated saves for
// the same month; never auto-deleted.
type MonthlyRecord struct {
	YearMonth        string    `json:"yearMonth"`
	TotalMine        int64     `json:"totalMine"`
	TotalSiblings    int64     `json:"totalSiblings"`
	SettlementAmount float64   `json:"settlementAmount"`
	MineItems        []Item    `json:"mineItems"`
	SiblingsItems    []Item    `json:"siblingsItems"`
	CreatedAt        time.Time `json:"createdAt,omitempty"`
	SavedAt          time.Time `json:"savedAt"`
}

var ErrInvalidYearMonth = errors.New("invalid year-month, want YYYY-MM")

var yearMonthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidateYearMonth checks the zero-padded YYYY-MM key format.
func ValidateYearMonth(s string) error {
	if !yearMonthRe.MatchString(s) {
		return ErrInvalidYearMonth
	}
	return nil
}

// YearMonthOf formats t as a record key.
func YearMonthOf(t time.Time) string {
	return t.Format("2006-01")
}

// NewMonthlyRecord builds a record from the given ledger. The ledger is
// deep-copied so later mutations do not leak into the archived snapshot.
func NewMonthlyRecord(yearMonth string, ledger Ledger, savedAt time.Time) MonthlyRecord {
	snap := ledger.Clone()
	totals := snap.Totals()
	return MonthlyRecord{
		YearMonth:        yearMonth,
		TotalMine:        totals.TotalMine,
		TotalSiblings:    totals.TotalSiblings,
		SettlementAmount: totals.Net,
		MineItems:        snap.Mine,
		SiblingsItems:    snap.Siblings,
		SavedAt:          savedAt,
	}
}

// SortRecordsDesc orders records newest month first. Lexicographic order
// is correct because the key is zero-padded YYYY-MM.
func SortRecordsDesc(records []MonthlyRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].YearMonth > records[j].YearMonth
	})
}
