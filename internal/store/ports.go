package store

import (
	"context"
	"errors"

	"jeongsan/internal/core"
)

// ErrNotFound is returned by readers when the requested document does not
// exist. Absence of the settlement document is not an error condition for
// callers; the gateway self-heals by writing the defaults.
var ErrNotFound = errors.New("document not found")

// Ports for the remote document store. The settlement lives in a single
// document; monthly records are one document per YYYY-MM key.
type (
	SettlementReader interface {
		// GetSettlement fetches the current settlement document.
		// Returns ErrNotFound when it has never been written.
		GetSettlement(ctx context.Context) (core.Ledger, error)
	}

	SettlementWriter interface {
		// PutSettlement writes both item lists and a server-assigned
		// update timestamp, preserving any fields it does not carry.
		PutSettlement(ctx context.Context, ledger core.Ledger) error
	}

	RecordReader interface {
		// GetRecord fetches one monthly record by its YYYY-MM key.
		// Returns ErrNotFound when no record exists for that month.
		GetRecord(ctx context.Context, yearMonth string) (core.MonthlyRecord, error)

		// ListRecords fetches all monthly records, in no particular order.
		ListRecords(ctx context.Context) ([]core.MonthlyRecord, error)
	}

	RecordWriter interface {
		// PutRecord creates or overwrites the record for its month.
		PutRecord(ctx context.Context, record core.MonthlyRecord) error
	}

	Pinger interface {
		// Ping is a cheap connectivity probe used to fail fast before a
		// more expensive write.
		Ping(ctx context.Context) error
	}
)

// DocumentStore bundles all store operations; the firestore and memory
// backends implement the whole surface.
type DocumentStore interface {
	SettlementReader
	SettlementWriter
	RecordReader
	RecordWriter
	Pinger
}
