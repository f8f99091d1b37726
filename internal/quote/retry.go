package quote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foliotrack/portfolio-engine/internal/model"
)

// RetryingProvider wraps a Provider with bounded exponential backoff.
// Retry policy lives here, wired explicitly by the caller — the inner
// provider stays retry-free.
type RetryingProvider struct {
	inner       Provider
	maxAttempts int
	baseDelay   time.Duration
}

// WithRetry wraps p so each BatchQuote makes up to maxAttempts tries,
// doubling the delay between attempts starting from baseDelay.
func WithRetry(p Provider, maxAttempts int, baseDelay time.Duration) *RetryingProvider {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryingProvider{
		inner:       p,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

func (r *RetryingProvider) BatchQuote(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	var lastErr error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		quotes, err := r.inner.BatchQuote(ctx, symbols)
		if err == nil {
			return quotes, nil
		}
		lastErr = err
		slog.Warn("quote fetch failed",
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"symbols", len(symbols),
			"err", err,
		)
	}

	return nil, fmt.Errorf("%w: %d attempts exhausted: %v", ErrProviderUnavailable, r.maxAttempts, lastErr)
}
