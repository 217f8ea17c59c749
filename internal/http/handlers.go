package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"jeongsan/internal/archive"
	"jeongsan/internal/core"
	"jeongsan/internal/services"
)

type settlementResponse struct {
	Mine     []core.Item           `json:"mine"`
	Siblings []core.Item           `json:"siblings"`
	Totals   core.Totals           `json:"totals"`
	Status   services.StatusUpdate `json:"status"`
}

func (s *Server) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	ledger := s.svc.Ledger()
	writeJSON(w, http.StatusOK, settlementResponse{
		Mine:     ledger.Mine,
		Siblings: ledger.Siblings,
		Totals:   ledger.Totals(),
		Status:   s.svc.Status(),
	})
}

type itemRequest struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Fixed  bool   `json:"fixed"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromPath(w, r)
	if !ok {
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := core.SanitizeAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	item, err := s.svc.AddItem(r.Context(), owner, req.Name, amount, req.Fixed)
	if err != nil {
		slog.ErrorContext(r.Context(), "Add item failed", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "could not add item")
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

type itemPatchRequest struct {
	Name   *string `json:"name"`
	Amount *string `json:"amount"`
	Fixed  *bool   `json:"fixed"`
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromPath(w, r)
	if !ok {
		return
	}

	var req itemPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := core.ItemPatch{Name: req.Name, Fixed: req.Fixed}
	if req.Amount != nil {
		amount, err := core.SanitizeAmount(*req.Amount)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid amount")
			return
		}
		patch.Amount = &amount
	}

	if err := s.svc.UpdateItem(r.Context(), owner, r.PathValue("id"), patch); err != nil {
		slog.ErrorContext(r.Context(), "Update item failed", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "could not update item")
		return
	}

	// A missing id is deliberately a 204 as well; an update racing a
	// delete must not fail.
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromPath(w, r)
	if !ok {
		return
	}

	if err := s.svc.DeleteItem(r.Context(), owner, r.PathValue("id")); err != nil {
		slog.ErrorContext(r.Context(), "Delete item failed", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "could not delete item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type saveMonthRequest struct {
	YearMonth string `json:"yearMonth"`
}

func (s *Server) handleSaveMonth(w http.ResponseWriter, r *http.Request) {
	var req saveMonthRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	record, err := s.svc.SaveMonth(r.Context(), req.YearMonth)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidYearMonth):
			writeError(w, http.StatusUnprocessableEntity, "invalid year-month, want YYYY-MM")
		case errors.Is(err, archive.ErrOffline):
			writeError(w, http.StatusServiceUnavailable, "store unreachable")
		case errors.Is(err, archive.ErrTimeout):
			writeError(w, http.StatusGatewayTimeout, "store timed out")
		default:
			slog.ErrorContext(r.Context(), "Snapshot save failed", "year_month", req.YearMonth, "error", err)
			writeError(w, http.StatusInternalServerError, "could not save snapshot")
		}
		return
	}

	s.historyCache.Purge()
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.historyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n < limit {
			limit = n
		}
	}

	key := strconv.Itoa(limit)
	if records, found := s.historyCache.Get(key); found {
		writeJSON(w, http.StatusOK, records)
		return
	}

	records := s.svc.History(r.Context(), limit)
	if records == nil {
		records = []core.MonthlyRecord{}
	}
	s.historyCache.Set(key, records)
	writeJSON(w, http.StatusOK, records)
}

func ownerFromPath(w http.ResponseWriter, r *http.Request) (core.Owner, bool) {
	owner, err := core.ParseOwner(r.PathValue("owner"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown owner")
		return "", false
	}
	return owner, true
}
