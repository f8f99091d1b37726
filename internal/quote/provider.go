// Package quote defines the market-data provider port and its
// implementations. The engine consumes batched quote snapshots; providers
// must tolerate unknown or delisted symbols by omitting them from the
// result rather than failing the whole batch.
package quote

import (
	"context"
	"errors"

	"github.com/foliotrack/portfolio-engine/internal/model"
)

// ErrProviderUnavailable is returned when the provider could not be
// reached (after retries, if the caller wired any). The price cache
// recovers from it locally by serving last known values.
var ErrProviderUnavailable = errors.New("quote: provider unavailable")

// Provider fetches current quote snapshots for a batch of symbols in one
// round trip. Symbols the provider does not know are absent from the map.
type Provider interface {
	BatchQuote(ctx context.Context, symbols []string) (map[string]model.Quote, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, symbols []string) (map[string]model.Quote, error)

func (f ProviderFunc) BatchQuote(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	return f(ctx, symbols)
}
