package calculator

import (
	"sort"

	"gonum.org/v1/gonum/interp"

	"EarningsScreener/internal/model"
)

// DefaultIV is the flat implied volatility used when no term point is available.
const DefaultIV = 0.20

// TermStructure maps days-to-expiry to ATM implied volatility.
// Linear between knots, flat outside them.
type TermStructure struct {
	days []float64
	ivs  []float64
	// curve is nil when the structure is constant.
	curve *interp.PiecewiseLinear
}

// BuildTermStructure dedupes points by day count (last IV wins) and sorts them.
func BuildTermStructure(points []model.TermPoint) TermStructure {
	unique := make(map[int]float64, len(points))
	for _, p := range points {
		unique[p.DaysToExpiry] = p.ATMIV
	}
	if len(unique) == 0 {
		return TermStructure{days: []float64{0}, ivs: []float64{DefaultIV}}
	}

	keys := make([]int, 0, len(unique))
	for d := range unique {
		keys = append(keys, d)
	}
	sort.Ints(keys)

	ts := TermStructure{
		days: make([]float64, len(keys)),
		ivs:  make([]float64, len(keys)),
	}
	for i, d := range keys {
		ts.days[i] = float64(d)
		ts.ivs[i] = unique[d]
	}
	if len(keys) > 1 {
		var pl interp.PiecewiseLinear
		// days are distinct and sorted, which is all Fit requires
		if err := pl.Fit(ts.days, ts.ivs); err == nil {
			ts.curve = &pl
		}
	}
	return ts
}

// IsConstant reports whether the structure degenerated to a single value.
func (t TermStructure) IsConstant() bool {
	return len(t.days) < 2 || t.days[0] == t.days[len(t.days)-1]
}

// At returns the implied volatility at dte, holding the end values flat outside the knots.
func (t TermStructure) At(dte float64) float64 {
	if t.IsConstant() || t.curve == nil {
		return t.ivs[0]
	}
	return t.curve.Predict(dte)
}

// Knots returns copies of the sorted day counts and their IVs.
func (t TermStructure) Knots() (days, ivs []float64) {
	days = append([]float64(nil), t.days...)
	ivs = append([]float64(nil), t.ivs...)
	return days, ivs
}
