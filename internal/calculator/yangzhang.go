package calculator

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"EarningsScreener/internal/model"
)

// ErrInsufficientData is returned when a price history cannot support the estimator.
var ErrInsufficientData = errors.New("insufficient price data")

const (
	// DefaultVolWindow is the rolling window (in bars) of the realized volatility estimator.
	DefaultVolWindow = 30
	// TradingPeriods annualizes daily volatility.
	TradingPeriods = 252
)

// YangZhang returns the annualized Yang-Zhang volatility of the most recent rolling window.
// Requires at least window+1 bars.
func YangZhang(bars []model.OHLCV, window, tradingPeriods int) (float64, error) {
	rolling, err := yangZhangRolling(bars, window, tradingPeriods)
	if err != nil {
		return 0, err
	}
	last := rolling[len(rolling)-1]
	if model.IsMissing(last) {
		return 0, fmt.Errorf("yang-zhang: last window undefined: %w", ErrInsufficientData)
	}
	return last, nil
}

// YangZhangSeries returns every defined rolling value, oldest first.
func YangZhangSeries(bars []model.OHLCV, window, tradingPeriods int) ([]float64, error) {
	rolling, err := yangZhangRolling(bars, window, tradingPeriods)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(rolling))
	for _, v := range rolling {
		if !model.IsMissing(v) {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("yang-zhang: no defined window: %w", ErrInsufficientData)
	}
	return out, nil
}

// yangZhangRolling returns one value per bar; rows without a complete window are NaN.
func yangZhangRolling(bars []model.OHLCV, window, tradingPeriods int) ([]float64, error) {
	if window < 2 {
		return nil, fmt.Errorf("yang-zhang: window must be at least 2, got %d", window)
	}
	if len(bars) < window+1 {
		return nil, fmt.Errorf("yang-zhang: need %d bars, got %d: %w", window+1, len(bars), ErrInsufficientData)
	}

	bars = fillMissing(bars)
	n := len(bars)

	logOCSq := make([]float64, n)
	logCCSq := make([]float64, n)
	rs := make([]float64, n)
	logOCSq[0] = math.NaN()
	logCCSq[0] = math.NaN()

	for i, b := range bars {
		logHO := math.Log(b.High / b.Open)
		logLO := math.Log(b.Low / b.Open)
		logCO := math.Log(b.Close / b.Open)
		rs[i] = logHO*(logHO-logCO) + logLO*(logLO-logCO)

		if i == 0 {
			continue
		}
		prevClose := bars[i-1].Close
		logOC := math.Log(b.Open / prevClose)
		logCC := math.Log(b.Close / prevClose)
		logOCSq[i] = logOC * logOC
		logCCSq[i] = logCC * logCC
	}

	scale := 1.0 / (float64(window) - 1.0)
	openVol := rollingSum(logOCSq, window, scale)
	closeVol := rollingSum(logCCSq, window, scale)
	windowRS := rollingSum(rs, window, scale)

	k := 0.34 / (1.34 + (float64(window)+1)/(float64(window)-1))
	annualize := math.Sqrt(float64(tradingPeriods))

	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sqrt(openVol[i]+k*closeVol[i]+(1-k)*windowRS[i]) * annualize
	}
	return out, nil
}

// rollingSum sums each trailing window and multiplies by scale.
// A window that contains a NaN, or is incomplete, yields NaN.
func rollingSum(values []float64, window int, scale float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			out[i] = math.NaN()
			continue
		}
		sum, err := stats.Sum(w)
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum * scale
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// fillMissing forward-fills then back-fills NaN fields on a copy of bars.
// A field missing in every bar stays NaN.
func fillMissing(bars []model.OHLCV) []model.OHLCV {
	out := make([]model.OHLCV, len(bars))
	copy(out, bars)

	fields := []func(*model.OHLCV) *float64{
		func(b *model.OHLCV) *float64 { return &b.Open },
		func(b *model.OHLCV) *float64 { return &b.High },
		func(b *model.OHLCV) *float64 { return &b.Low },
		func(b *model.OHLCV) *float64 { return &b.Close },
		func(b *model.OHLCV) *float64 { return &b.Volume },
	}
	for _, field := range fields {
		last := math.NaN()
		for i := range out {
			p := field(&out[i])
			if math.IsNaN(*p) {
				*p = last
			} else {
				last = *p
			}
		}
		next := math.NaN()
		for i := len(out) - 1; i >= 0; i-- {
			p := field(&out[i])
			if math.IsNaN(*p) {
				*p = next
			} else {
				next = *p
			}
		}
	}
	return out
}
