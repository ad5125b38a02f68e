package strategy

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"EarningsScreener/internal/model"
)

// Thresholds of the three screening signals. Comparisons are inclusive.
const (
	MinAvgVolume   = 1_500_000
	MinIV30RV30    = 1.25
	MaxTSSlope045  = -0.00406
	SlopeHorizon   = 45
	IVReferenceDTE = 30
)

// avgVolumePasses checks 30-day liquidity. A nil average never passes.
func avgVolumePasses(avg *float64) bool {
	return avg != nil && *avg >= MinAvgVolume
}

// ivRVPasses checks that implied volatility is rich relative to realized.
func ivRVPasses(ratio *float64) bool {
	return ratio != nil && *ratio >= MinIV30RV30
}

// slopePasses checks for a downward sloping (backwardated) front of the term structure.
func slopePasses(slope *float64) bool {
	return slope != nil && *slope <= MaxTSSlope045
}

// Rate maps the three flags to a rating. Without a qualifying slope the symbol is rejected.
func Rate(avgVolume, ivRV, slope bool) model.Rating {
	switch {
	case !slope:
		return model.RatingReject
	case avgVolume && ivRV:
		return model.RatingGo
	case avgVolume || ivRV:
		return model.RatingConsider
	default:
		return model.RatingReject
	}
}

// ExpectedMove formats the straddle-implied move as a percentage of price rounded to two
// decimals on the float value, e.g. "4.2%" or "3.0%". Trailing zeros are trimmed down to
// one decimal. It returns nil when there is no usable straddle.
func ExpectedMove(straddle *float64, price float64) *string {
	if straddle == nil || *straddle == 0 || model.IsMissing(*straddle) || price <= 0 {
		return nil
	}
	s := strconv.FormatFloat(*straddle/price*100, 'f', 2, 64)
	s = strings.TrimSuffix(s, "0") + "%"
	return &s
}

// ParseExpectedMove reads a value produced by ExpectedMove. Nil or malformed input yields 0.
func ParseExpectedMove(s *string) float64 {
	if s == nil {
		return 0
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(*s), "%"))
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
