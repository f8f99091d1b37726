package portfolio

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foliotrack/portfolio-engine/internal/model"
	"github.com/foliotrack/portfolio-engine/internal/store"
)

// GetValuation handles GET /api/v1/portfolio/{ownerID}
func (s *Service) GetValuation(w http.ResponseWriter, r *http.Request) {
	v, err := s.Valuate(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeError(w, "failed to build valuation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// GetSandboxValuation handles GET /api/v1/sandbox/portfolios/{portfolioID}/valuation
func (s *Service) GetSandboxValuation(w http.ResponseWriter, r *http.Request) {
	v, err := s.ValuateSandbox(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "portfolio not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to build valuation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// RecordTradeHandler handles POST /api/v1/portfolio/{ownerID}/transactions
func (s *Service) RecordTradeHandler(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := s.RecordTrade(r.Context(), chi.URLParam(r, "ownerID"), req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, "failed to record trade", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// ListTradesHandler handles GET /api/v1/portfolio/{ownerID}/transactions
func (s *Service) ListTradesHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ListTrades(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// DeleteTradeHandler handles DELETE /api/v1/portfolio/{ownerID}/transactions/{tradeID}
func (s *Service) DeleteTradeHandler(w http.ResponseWriter, r *http.Request) {
	err := s.DeleteTrade(r.Context(), chi.URLParam(r, "ownerID"), chi.URLParam(r, "tradeID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "trade not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to delete trade", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecalculateHandler handles POST /api/v1/portfolio/{ownerID}/recalculate
func (s *Service) RecalculateHandler(w http.ResponseWriter, r *http.Request) {
	updated, err := s.Recalculate(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeError(w, "recalculation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"holdings_updated": updated})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
