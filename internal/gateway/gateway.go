// Package gateway maps the in-memory ledger to the remote settlement
// document. It owns the retry policy and the offline fallback: loads
// always produce a usable ledger, saves report failure only after the
// retries are exhausted.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"jeongsan/internal/core"
	applog "jeongsan/internal/log"
	"jeongsan/internal/retry"
	"jeongsan/internal/store"
)

// ErrSaveFailed reports that a save did not reach the remote store after
// all retries. The in-memory ledger is never rolled back on this error;
// only the remote copy lags.
var ErrSaveFailed = errors.New("settlement save failed")

type Gateway struct {
	store  store.DocumentStore
	mirror store.SettlementReader // optional local fallback, may be nil
	policy retry.Policy
	logger *applog.Logger
}

// New constructs the gateway once at process start. mirror may be nil
// when no local database is configured.
func New(docStore store.DocumentStore, mirror store.SettlementReader, policy retry.Policy, logger *applog.Logger) *Gateway {
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentGateway})
	}
	return &Gateway{
		store:  docStore,
		mirror: mirror,
		policy: policy,
		logger: logger.WithComponent(applog.ComponentGateway),
	}
}

// Load fetches the settlement document. It never returns an error: when
// the document does not exist it self-heals by writing the defaults, and
// when the store is unreachable it falls back to the local mirror and
// finally to the built-in defaults so offline operation never blocks.
func (g *Gateway) Load(ctx context.Context) core.Ledger {
	var ledger core.Ledger
	err := g.policy.Do(ctx, "load settlement", func(ctx context.Context) error {
		got, err := g.store.GetSettlement(ctx)
		if err != nil {
			// Absence is definitive; another read cannot make the
			// document appear. Skip straight to the self-heal.
			if errors.Is(err, store.ErrNotFound) {
				return retry.Permanent(err)
			}
			return err
		}
		ledger = got
		return nil
	})
	if err == nil {
		if ledger.IsEmpty() {
			return core.DefaultLedger()
		}
		return ledger
	}

	if errors.Is(err, store.ErrNotFound) {
		defaults := core.DefaultLedger()
		if saveErr := g.Save(ctx, defaults); saveErr != nil {
			g.logger.WarnContext(ctx, "Could not initialize settlement document", "error", saveErr)
		} else {
			g.logger.InfoContext(ctx, "Initialized settlement document with defaults")
		}
		return defaults
	}

	g.logger.WarnContext(ctx, "Settlement load failed, falling back", "error", err)

	if g.mirror != nil {
		if cached, mirrorErr := g.mirror.GetSettlement(ctx); mirrorErr == nil && !cached.IsEmpty() {
			g.logger.InfoContext(ctx, "Serving settlement from local mirror")
			return cached
		}
	}
	return core.DefaultLedger()
}

// Save writes both item lists to the remote document, merging so fields
// the gateway does not own are preserved. Fails only after the retry
// policy is exhausted.
func (g *Gateway) Save(ctx context.Context, ledger core.Ledger) error {
	snapshot := ledger.Clone()
	err := g.policy.Do(ctx, "save settlement", func(ctx context.Context) error {
		return g.store.PutSettlement(ctx, snapshot)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	g.logger.InfoContext(ctx, "Settlement saved",
		"mine_items", len(snapshot.Mine),
		"siblings_items", len(snapshot.Siblings))
	return nil
}

// Probe is the cheap connectivity check: it fails fast when the store is
// definitely unreachable, before a caller attempts a more expensive write.
func (g *Gateway) Probe(ctx context.Context) error {
	return g.store.Ping(ctx)
}

// Store exposes the underlying document store for collaborators that need
// direct record access (the snapshot archive).
func (g *Gateway) Store() store.DocumentStore {
	return g.store
}
