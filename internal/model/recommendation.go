package model

import "time"

// Rating is the final classification of a symbol.
type Rating string

const (
	RatingGo       Rating = "Go"
	RatingConsider Rating = "Consider"
	RatingReject   Rating = "Reject"
)

// Recommendation holds the decision flags for one symbol and the values behind them.
type Recommendation struct {
	Symbol       string
	AvgVolume    bool
	IV30RV30     bool
	Slope        bool
	ExpectedMove *string
	Rating       Rating

	// Diagnostics. Nil pointers mark a signal that could not be computed.
	AvgVolumeValue  *float64
	IV30            float64
	RV30            *float64
	IV30RV30Value   *float64
	TSSlope045      *float64
	UnderlyingPrice float64
	Straddle        *float64
	ComputedAt      time.Time
}

// ScreenResult is the outcome for one symbol of a batch: either Recommendation or Err is set.
type ScreenResult struct {
	Event          EarningsEvent
	Recommendation *Recommendation
	Err            error
}

// ResultRow is the flat record handed to persistence and notification.
type ResultRow struct {
	Symbol       string   `csv:"Symbol" json:"symbol"`
	Company      string   `csv:"Company" json:"company"`
	Rating       Rating   `csv:"rating" json:"rating"`
	AvgVolume    bool     `csv:"avg_volume" json:"avg_volume"`
	IV30RV30     bool     `csv:"iv30_rv30" json:"iv30_rv30"`
	ExpectedMove *string  `csv:"expected_move" json:"expected_move"`
	TSSlope045   *float64 `csv:"ts_slope_0_45" json:"ts_slope_0_45,omitempty"`
	RV30         *float64 `csv:"rv30" json:"rv30,omitempty"`
	IV30         float64  `csv:"iv30" json:"iv30"`
}

// Row flattens a recommendation for the given event.
func (r *Recommendation) Row(evt EarningsEvent) ResultRow {
	company := evt.Company
	if company == "" {
		company = evt.Symbol
	}
	return ResultRow{
		Symbol:       evt.Symbol,
		Company:      company,
		Rating:       r.Rating,
		AvgVolume:    r.AvgVolume,
		IV30RV30:     r.IV30RV30,
		ExpectedMove: r.ExpectedMove,
		TSSlope045:   r.TSSlope045,
		RV30:         r.RV30,
		IV30:         r.IV30,
	}
}
