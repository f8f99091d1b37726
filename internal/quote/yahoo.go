package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliotrack/portfolio-engine/internal/model"
)

// YahooProvider fetches batched quotes from the Yahoo Finance v7 quote API.
type YahooProvider struct {
	cli     *http.Client
	baseURL string
}

// NewYahooProvider creates a provider against the public Yahoo endpoint.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		cli:     &http.Client{Timeout: 8 * time.Second},
		baseURL: "https://query2.finance.yahoo.com",
	}
}

// NewYahooProviderWithBase creates a provider against a custom base URL.
// Used by tests to point at an httptest server.
func NewYahooProviderWithBase(base string, cli *http.Client) *YahooProvider {
	if cli == nil {
		cli = &http.Client{Timeout: 8 * time.Second}
	}
	return &YahooProvider{cli: cli, baseURL: base}
}

// yahooQuote mirrors one entry of the v7 quoteResponse payload.
type yahooQuote struct {
	Symbol                     string  `json:"symbol"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketChange        float64 `json:"regularMarketChange"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	RegularMarketVolume        int64   `json:"regularMarketVolume"`
	ShortName                  string  `json:"shortName"`
	LongName                   string  `json:"longName"`
	Currency                   string  `json:"currency"`
}

// BatchQuote fetches all symbols in a single request. Symbols Yahoo does
// not return (unknown, delisted) are simply absent from the result.
func (p *YahooProvider) BatchQuote(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	if len(symbols) == 0 {
		return map[string]model.Quote{}, nil
	}

	cleaned := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}

	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s",
		p.baseURL, url.QueryEscape(strings.Join(cleaned, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "portfolio-engine/1.0")

	resp, err := p.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: yahoo http %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var raw struct {
		QuoteResponse struct {
			Result []yahooQuote `json:"result"`
			Error  any          `json:"error"`
		} `json:"quoteResponse"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrProviderUnavailable, err)
	}

	result := make(map[string]model.Quote, len(raw.QuoteResponse.Result))
	for _, q := range raw.QuoteResponse.Result {
		if q.Symbol == "" || q.RegularMarketPrice <= 0 {
			continue
		}
		name := q.ShortName
		if name == "" {
			name = q.LongName
		}
		result[q.Symbol] = model.Quote{
			Symbol:             q.Symbol,
			Price:              decimal.NewFromFloat(q.RegularMarketPrice),
			PreviousClose:      decimal.NewFromFloat(q.RegularMarketPreviousClose),
			DailyChange:        decimal.NewFromFloat(q.RegularMarketChange),
			DailyChangePercent: decimal.NewFromFloat(q.RegularMarketChangePercent),
			CompanyName:        name,
			Volume:             q.RegularMarketVolume,
			Currency:           q.Currency,
		}
	}
	return result, nil
}
