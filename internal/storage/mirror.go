// Package storage keeps a sqlite mirror of the remote documents. The
// mirror worker writes it from AMQP events and periodic reconciles; the
// gateway reads it as the offline fallback.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"jeongsan/internal/core"
	"jeongsan/internal/store"

	_ "modernc.org/sqlite"
)

type Mirror struct {
	db *sql.DB
}

var (
	_ store.SettlementReader = (*Mirror)(nil)
	_ store.RecordReader     = (*Mirror)(nil)
)

func NewMirror(dbPath string) (*Mirror, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Mirror{db: db}, nil
}

func (m *Mirror) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// GetSettlement implements store.SettlementReader over the mirrored
// document; store.ErrNotFound when nothing has been mirrored yet.
func (m *Mirror) GetSettlement(ctx context.Context) (core.Ledger, error) {
	var mineJSON, siblingsJSON string
	err := m.db.QueryRowContext(ctx,
		`SELECT mine_json, siblings_json FROM settlement WHERE id = 1`,
	).Scan(&mineJSON, &siblingsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Ledger{}, store.ErrNotFound
	}
	if err != nil {
		return core.Ledger{}, fmt.Errorf("read mirrored settlement: %w", err)
	}

	var ledger core.Ledger
	if err := json.Unmarshal([]byte(mineJSON), &ledger.Mine); err != nil {
		return core.Ledger{}, fmt.Errorf("decode mine items: %w", err)
	}
	if err := json.Unmarshal([]byte(siblingsJSON), &ledger.Siblings); err != nil {
		return core.Ledger{}, fmt.Errorf("decode siblings items: %w", err)
	}
	return ledger, nil
}

// UpsertSettlement overwrites the single mirrored settlement row.
func (m *Mirror) UpsertSettlement(ctx context.Context, ledger core.Ledger, updatedAt time.Time) error {
	mineJSON, err := json.Marshal(ledger.Mine)
	if err != nil {
		return fmt.Errorf("encode mine items: %w", err)
	}
	siblingsJSON, err := json.Marshal(ledger.Siblings)
	if err != nil {
		return fmt.Errorf("encode siblings items: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO settlement (id, mine_json, siblings_json, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			mine_json = excluded.mine_json,
			siblings_json = excluded.siblings_json,
			updated_at = excluded.updated_at`,
		string(mineJSON), string(siblingsJSON), updatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert mirrored settlement: %w", err)
	}

	slog.InfoContext(ctx, "Settlement mirrored",
		"mine_items", len(ledger.Mine),
		"siblings_items", len(ledger.Siblings))
	return nil
}

// GetRecord implements store.RecordReader over the mirrored records.
func (m *Mirror) GetRecord(ctx context.Context, yearMonth string) (core.MonthlyRecord, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT year_month, total_mine, total_siblings, settlement_amount,
		       mine_items_json, siblings_items_json, created_at, saved_at
		FROM monthly_records WHERE year_month = ?`, yearMonth)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlyRecord{}, store.ErrNotFound
	}
	if err != nil {
		return core.MonthlyRecord{}, fmt.Errorf("read mirrored record: %w", err)
	}
	return rec, nil
}

// ListRecords returns every mirrored monthly record, unordered.
func (m *Mirror) ListRecords(ctx context.Context) ([]core.MonthlyRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT year_month, total_mine, total_siblings, settlement_amount,
		       mine_items_json, siblings_items_json, created_at, saved_at
		FROM monthly_records`)
	if err != nil {
		return nil, fmt.Errorf("list mirrored records: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mirrored record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpsertRecord overwrites the mirrored record for its month.
func (m *Mirror) UpsertRecord(ctx context.Context, rec core.MonthlyRecord) error {
	if err := core.ValidateYearMonth(rec.YearMonth); err != nil {
		return err
	}
	mineJSON, err := json.Marshal(rec.MineItems)
	if err != nil {
		return fmt.Errorf("encode mine items: %w", err)
	}
	siblingsJSON, err := json.Marshal(rec.SiblingsItems)
	if err != nil {
		return fmt.Errorf("encode siblings items: %w", err)
	}

	var createdAt any
	if !rec.CreatedAt.IsZero() {
		createdAt = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO monthly_records (year_month, total_mine, total_siblings,
			settlement_amount, mine_items_json, siblings_items_json, created_at, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (year_month) DO UPDATE SET
			total_mine = excluded.total_mine,
			total_siblings = excluded.total_siblings,
			settlement_amount = excluded.settlement_amount,
			mine_items_json = excluded.mine_items_json,
			siblings_items_json = excluded.siblings_items_json,
			created_at = COALESCE(excluded.created_at, monthly_records.created_at),
			saved_at = excluded.saved_at`,
		rec.YearMonth, rec.TotalMine, rec.TotalSiblings, rec.SettlementAmount,
		string(mineJSON), string(siblingsJSON), createdAt,
		rec.SavedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert mirrored record: %w", err)
	}

	slog.InfoContext(ctx, "Monthly record mirrored", "year_month", rec.YearMonth)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.MonthlyRecord, error) {
	var (
		rec          core.MonthlyRecord
		mineJSON     string
		siblingsJSON string
		createdAt    sql.NullString
		savedAt      string
	)
	err := row.Scan(&rec.YearMonth, &rec.TotalMine, &rec.TotalSiblings,
		&rec.SettlementAmount, &mineJSON, &siblingsJSON, &createdAt, &savedAt)
	if err != nil {
		return core.MonthlyRecord{}, err
	}
	if err := json.Unmarshal([]byte(mineJSON), &rec.MineItems); err != nil {
		return core.MonthlyRecord{}, fmt.Errorf("decode mine items: %w", err)
	}
	if err := json.Unmarshal([]byte(siblingsJSON), &rec.SiblingsItems); err != nil {
		return core.MonthlyRecord{}, fmt.Errorf("decode siblings items: %w", err)
	}
	if createdAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, createdAt.String); err == nil {
			rec.CreatedAt = t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
		rec.SavedAt = t
	}
	return rec, nil
}
