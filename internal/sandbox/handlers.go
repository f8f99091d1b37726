package sandbox

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/model"
	"github.com/foliotrack/portfolio-engine/internal/store"
)

// CreatePortfolioHandler handles POST /api/v1/sandbox/portfolios
func (s *Service) CreatePortfolioHandler(w http.ResponseWriter, r *http.Request) {
	var req CreatePortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := s.CreatePortfolio(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(p)
}

// ListPortfoliosHandler handles GET /api/v1/sandbox/portfolios?owner=<id>
func (s *Service) ListPortfoliosHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner")
	if ownerID == "" {
		writeError(w, "owner query parameter is required", http.StatusBadRequest)
		return
	}

	portfolios, err := s.ListPortfolios(r.Context(), ownerID)
	if err != nil {
		writeError(w, "failed to list portfolios", http.StatusInternalServerError)
		return
	}
	if portfolios == nil {
		portfolios = []model.Portfolio{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(portfolios)
}

// GetPortfolioHandler handles GET /api/v1/sandbox/portfolios/{portfolioID}
func (s *Service) GetPortfolioHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.GetPortfolio(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

// UpdatePortfolioRequest is the JSON body for portfolio updates. Zero
// values leave the corresponding field unchanged.
type UpdatePortfolioRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// UpdatePortfolioHandler handles PUT /api/v1/sandbox/portfolios/{portfolioID}
func (s *Service) UpdatePortfolioHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdatePortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := s.UpdatePortfolio(r.Context(), chi.URLParam(r, "portfolioID"),
		req.Name, req.Description, req.InitialBalance)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

// DeletePortfolioHandler handles DELETE /api/v1/sandbox/portfolios/{portfolioID}
func (s *Service) DeletePortfolioHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.DeletePortfolio(r.Context(), chi.URLParam(r, "portfolioID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExecuteTradeHandler handles POST /api/v1/sandbox/portfolios/{portfolioID}/trades
func (s *Service) ExecuteTradeHandler(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := s.ExecuteTrade(r.Context(), chi.URLParam(r, "portfolioID"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// ListTransactionsHandler handles GET /api/v1/sandbox/portfolios/{portfolioID}/trades
func (s *Service) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ListTransactions(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil {
		writeError(w, "failed to list transactions", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// EditTransactionHandler handles PUT /api/v1/sandbox/portfolios/{portfolioID}/trades/{tradeID}
func (s *Service) EditTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := s.EditTransaction(r.Context(),
		chi.URLParam(r, "portfolioID"), chi.URLParam(r, "tradeID"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// DeleteTransactionHandler handles DELETE /api/v1/sandbox/portfolios/{portfolioID}/trades/{tradeID}
func (s *Service) DeleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	err := s.DeleteTransaction(r.Context(),
		chi.URLParam(r, "portfolioID"), chi.URLParam(r, "tradeID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps service errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientQuantity),
		errors.Is(err, ErrNoSuchPosition):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, "not found", http.StatusNotFound)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
