package collector

import (
	"context"
	"fmt"
	"math"
	"time"

	"EarningsScreener/internal/calculator"
	"EarningsScreener/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Unset fields are generated around Price.
type MockFetcher struct {
	Price       float64
	DailyData   []model.OHLCV
	Expirations []time.Time
	Chains      map[time.Time]*model.ExpirationChain

	ExpirationsErr error
	PriceErr       error
	HistoryErr     error
	// ChainErr fails individual expirations.
	ChainErr map[time.Time]error

	Now func() time.Time
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MockFetcher) FetchDailyBars(_ context.Context, _ string, n int) ([]model.OHLCV, error) {
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	if m.DailyData != nil {
		return m.DailyData, nil
	}
	return generateMockBars(m.Price, n, m.now()), nil
}

func (m *MockFetcher) FetchExpirations(_ context.Context, _ string) ([]time.Time, error) {
	if m.ExpirationsErr != nil {
		return nil, m.ExpirationsErr
	}
	if m.Expirations != nil {
		return m.Expirations, nil
	}
	today := calculator.CivilDate(m.now())
	var out []time.Time
	for _, days := range []int{3, 10, 17, 31, 52, 80} {
		out = append(out, today.AddDate(0, 0, days))
	}
	return out, nil
}

func (m *MockFetcher) FetchChain(_ context.Context, symbol string, expiration time.Time) (*model.ExpirationChain, error) {
	key := calculator.CivilDate(expiration)
	if err, ok := m.ChainErr[key]; ok {
		return nil, err
	}
	if m.Chains != nil {
		if c, ok := m.Chains[key]; ok {
			return c, nil
		}
		return nil, fmt.Errorf("mock: no chain for %s %s", symbol, key.Format("2006-01-02"))
	}
	dte := calculator.DaysToExpiry(key, m.now())
	return generateMockChain(m.Price, key, dte), nil
}

func (m *MockFetcher) FetchUnderlyingPrice(_ context.Context, _ string) (float64, error) {
	if m.PriceErr != nil {
		return 0, m.PriceErr
	}
	return m.Price, nil
}

func generateMockBars(basePrice float64, count int, now time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   now.AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 2_000_000,
		}
	}
	return bars
}

// generateMockChain builds five strikes around basePrice with an inverted term structure:
// front expirations carry the earnings premium.
func generateMockChain(basePrice float64, expiration time.Time, dte int) *model.ExpirationChain {
	iv := 0.30 + 0.60*math.Exp(-float64(dte)/10)
	chain := &model.ExpirationChain{Expiration: expiration}
	step := math.Max(1, math.Round(basePrice*0.025))
	atm := math.Round(basePrice/step) * step
	for i := -2; i <= 2; i++ {
		strike := atm + float64(i)*step
		premium := basePrice * iv * math.Sqrt(math.Max(float64(dte), 1)/365) * 0.4
		callMid := math.Max(basePrice-strike, 0) + premium
		putMid := math.Max(strike-basePrice, 0) + premium
		chain.Calls = append(chain.Calls, model.OptionQuote{Strike: strike, Bid: callMid * 0.98, Ask: callMid * 1.02, ImpliedVol: iv})
		chain.Puts = append(chain.Puts, model.OptionQuote{Strike: strike, Bid: putMid * 0.98, Ask: putMid * 1.02, ImpliedVol: iv})
	}
	return chain
}
