package model

import (
	"math"
	"time"
)

// OHLCV represents a single daily candlestick bar.
// NaN marks a field the provider did not populate.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// MarketSnapshot is everything fetched for one symbol before any computation.
type MarketSnapshot struct {
	Symbol          string
	UnderlyingPrice float64
	// Chains that were fetched successfully, in expiration order.
	Chains    []ExpirationChain
	DailyBars []OHLCV
	FetchedAt time.Time
}

// IsMissing reports whether v is an unpopulated market-data field.
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
