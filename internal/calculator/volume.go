package calculator

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"

	"EarningsScreener/internal/model"
)

// VolumeWindow is the number of sessions averaged for the liquidity check.
const VolumeWindow = 30

// CalculateSMA computes the simple moving average of the given values over the specified period.
func CalculateSMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	return stats.Mean(values[len(values)-period:])
}

// AverageVolume returns the mean volume of the most recent fully populated window.
func AverageVolume(bars []model.OHLCV, period int) (float64, error) {
	volumes := extractVolumes(bars)
	if len(volumes) < period {
		return 0, fmt.Errorf("average volume: need %d bars, got %d: %w", period, len(volumes), ErrInsufficientData)
	}
	for end := len(volumes); end >= period; end-- {
		w := volumes[end-period : end]
		if hasNaN(w) {
			continue
		}
		return CalculateSMA(w, period)
	}
	return 0, fmt.Errorf("average volume: no complete window: %w", ErrInsufficientData)
}

func extractVolumes(bars []model.OHLCV) []float64 {
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		volumes[i] = b.Volume
	}
	return volumes
}
