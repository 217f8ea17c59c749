// Package http exposes the settlement service as a small JSON API.
package http

import (
	"net/http"
	"time"

	"jeongsan/internal/cache"
	"jeongsan/internal/core"
	"jeongsan/internal/middleware/trace"
	"jeongsan/internal/services"
)

type Server struct {
	http.Server
	svc          *services.SettlementService
	historyLimit int

	// History responses are cached per limit and purged whenever a
	// snapshot save changes the archive.
	historyCache *cache.LRUCache[[]core.MonthlyRecord]
}

// NewServer configures routes and returns a ready-to-run server.
// historyLimit caps how many archived months a single request returns.
func NewServer(addr string, svc *services.SettlementService, historyLimit int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		svc:          svc,
		historyLimit: historyLimit,
		historyCache: cache.NewLRUCache[[]core.MonthlyRecord](16, 5*time.Minute),
	}
	s.Server = http.Server{
		Addr:    addr,
		Handler: trace.Middleware(mux),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/settlement", s.handleGetSettlement)
	mux.HandleFunc("POST /api/settlement/{owner}/items", s.handleAddItem)
	mux.HandleFunc("PATCH /api/settlement/{owner}/items/{id}", s.handleUpdateItem)
	mux.HandleFunc("DELETE /api/settlement/{owner}/items/{id}", s.handleDeleteItem)

	mux.HandleFunc("POST /api/records", s.handleSaveMonth)
	mux.HandleFunc("GET /api/records", s.handleHistory)

	return s
}

// HistoryCache exposes the cache for janitor registration.
func (s *Server) HistoryCache() cache.Cleaner {
	return s.historyCache
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports 503 while the remote store is unreachable. Edits
// still work offline; readiness only signals degraded persistence.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Status().Status == services.StatusOffline {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("offline"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
