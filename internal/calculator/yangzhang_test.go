package calculator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EarningsScreener/internal/model"
)

func bar(o, h, l, c float64) model.OHLCV {
	return model.OHLCV{Open: o, High: h, Low: l, Close: c, Volume: 1_000_000}
}

func flatBars(n int, price float64) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	for i := range bars {
		bars[i] = bar(price, price, price, price)
	}
	return bars
}

func TestYangZhang_KnownValue(t *testing.T) {
	bars := []model.OHLCV{
		bar(100, 100, 100, 100),
		bar(100, 110, 100, 110),
		bar(110, 110, 110, 110),
	}
	got, err := YangZhang(bars, 2, TradingPeriods)
	require.NoError(t, err)

	k := 0.34 / (1.34 + 3.0)
	want := math.Log(1.1) * math.Sqrt(k*252)
	assert.InDelta(t, want, got, 1e-12)
}

func TestYangZhang_ConstantPrices(t *testing.T) {
	got, err := YangZhang(flatBars(31, 50), DefaultVolWindow, TradingPeriods)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestYangZhang_InsufficientBars(t *testing.T) {
	_, err := YangZhang(flatBars(30, 50), DefaultVolWindow, TradingPeriods)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestYangZhang_WholeColumnMissing(t *testing.T) {
	tests := []struct {
		name  string
		clear func(b *model.OHLCV)
	}{
		{"open", func(b *model.OHLCV) { b.Open = math.NaN() }},
		{"high", func(b *model.OHLCV) { b.High = math.NaN() }},
		{"low", func(b *model.OHLCV) { b.Low = math.NaN() }},
		{"close", func(b *model.OHLCV) { b.Close = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := flatBars(40, 50)
			for i := range bars {
				tt.clear(&bars[i])
			}
			_, err := YangZhang(bars, DefaultVolWindow, TradingPeriods)
			assert.ErrorIs(t, err, ErrInsufficientData)
		})
	}
}

// randomBars walks a price path and wraps each bar so that low <= open, close <= high.
func randomBars(r *rand.Rand, n int) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	price := 20 + r.Float64()*200
	for i := range bars {
		open := price * math.Exp(r.NormFloat64()*0.01)
		closePx := open * math.Exp(r.NormFloat64()*0.03)
		high := math.Max(open, closePx) * (1 + r.Float64()*0.02)
		low := math.Min(open, closePx) * (1 - r.Float64()*0.02)
		bars[i] = bar(open, high, low, closePx)
		price = closePx
	}
	return bars
}

func TestYangZhang_ValidHistoryIsFiniteAndNonNegative(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := DefaultVolWindow + 1 + r.Intn(120)
		bars := randomBars(r, n)
		got, err := YangZhang(bars, DefaultVolWindow, TradingPeriods)
		require.NoError(t, err, "trial %d with %d bars", trial, n)
		assert.False(t, math.IsNaN(got) || math.IsInf(got, 0), "trial %d: %v", trial, got)
		assert.GreaterOrEqual(t, got, 0.0, "trial %d", trial)
	}
}

func TestYangZhang_InvalidWindow(t *testing.T) {
	_, err := YangZhang(flatBars(10, 50), 1, TradingPeriods)
	assert.Error(t, err)
}

func TestYangZhang_FillsMissingFields(t *testing.T) {
	clean := []model.OHLCV{
		bar(100, 100, 100, 100),
		bar(100, 110, 100, 110),
		bar(110, 110, 110, 110),
	}
	gappy := []model.OHLCV{
		bar(100, 100, 100, 100),
		bar(100, 110, 100, 110),
		bar(110, math.NaN(), 110, math.NaN()),
	}
	want, err := YangZhang(clean, 2, TradingPeriods)
	require.NoError(t, err)
	got, err := YangZhang(gappy, 2, TradingPeriods)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestYangZhang_DoesNotMutateInput(t *testing.T) {
	bars := []model.OHLCV{
		bar(100, 100, 100, 100),
		bar(math.NaN(), 110, 100, 110),
		bar(110, 110, 110, 110),
	}
	_, err := YangZhang(bars, 2, TradingPeriods)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(bars[1].Open))
}

func TestYangZhangSeries_Length(t *testing.T) {
	series, err := YangZhangSeries(flatBars(40, 20), DefaultVolWindow, TradingPeriods)
	require.NoError(t, err)
	// the first bar has no previous close, so the first defined value is at index window
	assert.Len(t, series, 40-DefaultVolWindow)
	for _, v := range series {
		assert.Equal(t, 0.0, v)
	}
}
