package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubMarketCapFilter checks market capitalization through the Finnhub company profile.
type FinnhubMarketCapFilter struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewFinnhubMarketCapFilter creates a filter using apiKey.
func NewFinnhubMarketCapFilter(apiKey, proxyURL string) *FinnhubMarketCapFilter {
	return &FinnhubMarketCapFilter{
		BaseURL: finnhubBaseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, false),
	}
}

type finnhubProfile struct {
	Name                 string   `json:"name"`
	MarketCapitalization *float64 `json:"marketCapitalization"`
}

// MarketCap returns the capitalization in millions. ok is false when the provider has no figure.
func (m *FinnhubMarketCapFilter) MarketCap(ctx context.Context, symbol string) (float64, bool, error) {
	u := fmt.Sprintf("%s/stock/profile2?symbol=%s&token=%s",
		m.BaseURL, url.QueryEscape(symbol), url.QueryEscape(m.APIKey))
	var profile finnhubProfile
	if err := getJSON(ctx, m.Client, u, &profile); err != nil {
		return 0, false, fmt.Errorf("finnhub profile %s: %w", symbol, err)
	}
	if profile.MarketCapitalization == nil {
		return 0, false, nil
	}
	return *profile.MarketCapitalization, true, nil
}

// Passes reports whether symbol is above the threshold. Unknown capitalization passes.
func (m *FinnhubMarketCapFilter) Passes(ctx context.Context, symbol string, thresholdMillions float64) bool {
	capM, ok, err := m.MarketCap(ctx, symbol)
	if err != nil {
		log.WithField("symbol", symbol).Warnf("market cap unavailable, keeping symbol: %v", err)
		return true
	}
	if !ok {
		return true
	}
	return capM > thresholdMillions
}

// AllowAllFilter passes every symbol.
type AllowAllFilter struct{}

func (AllowAllFilter) Passes(context.Context, string, float64) bool { return true }
