package pricecache

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// splitSymbols parses a comma-separated symbol list.
func splitSymbols(raw string) []string {
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// GetPrices handles GET /api/v1/prices?symbols=AAPL,MSFT
// Serves cached quotes, refreshing stale entries first.
func (c *Cache) GetPrices(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		writeError(w, "symbols query parameter is required", http.StatusBadRequest)
		return
	}

	prices, err := c.GetWithRefresh(r.Context(), symbols)
	if err != nil {
		writeError(w, "failed to load prices", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prices)
}

// RefreshPrices handles POST /api/v1/prices/refresh?symbols=AAPL,MSFT
// Bypasses the staleness check. This is the entry point an external
// scheduler calls for periodic refresh.
func (c *Cache) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		writeError(w, "symbols query parameter is required", http.StatusBadRequest)
		return
	}

	if err := c.ForceRefresh(r.Context(), symbols); err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	prices, err := c.store.GetCachedPrices(r.Context(), symbols)
	if err != nil {
		writeError(w, "failed to load prices", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prices)
}

// InvalidatePrices handles DELETE /api/v1/prices?symbols=AAPL,MSFT
func (c *Cache) InvalidatePrices(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		writeError(w, "symbols query parameter is required", http.StatusBadRequest)
		return
	}

	if err := c.Invalidate(r.Context(), symbols); err != nil {
		writeError(w, "failed to invalidate prices", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetClosingPrice handles GET /api/v1/prices/{symbol}/close?date=2026-08-21
func (c *Cache) GetClosingPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, "date query parameter must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	price, err := c.ClosingPrice(r.Context(), symbol, day)
	if err != nil {
		if errors.Is(err, ErrNoPriceAvailable) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, "failed to load closing price", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"symbol": symbol,
		"date":   day.Format("2006-01-02"),
		"close":  price.String(),
	})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
