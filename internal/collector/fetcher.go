package collector

import (
	"context"
	"time"

	"EarningsScreener/internal/model"
)

// PriceHistoryProvider returns daily bars in ascending date order. The result may be shorter than n.
type PriceHistoryProvider interface {
	FetchDailyBars(ctx context.Context, symbol string, n int) ([]model.OHLCV, error)
	Name() string
}

// OptionChainProvider exposes listed expirations, per-expiration chains and the underlying price.
type OptionChainProvider interface {
	FetchExpirations(ctx context.Context, symbol string) ([]time.Time, error)
	FetchChain(ctx context.Context, symbol string, expiration time.Time) (*model.ExpirationChain, error)
	FetchUnderlyingPrice(ctx context.Context, symbol string) (float64, error)
	Name() string
}

// Fetcher is a provider that serves both history and chains.
type Fetcher interface {
	PriceHistoryProvider
	OptionChainProvider
}

// MarketCapFilter gates symbols on market capitalization, in millions.
// Implementations return true when the figure cannot be obtained.
type MarketCapFilter interface {
	Passes(ctx context.Context, symbol string, thresholdMillions float64) bool
}
