package strategy

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"EarningsScreener/internal/calculator"
	"EarningsScreener/internal/collector"
	"EarningsScreener/internal/model"
)

// EvalOptions selects the ATM selector and the realized volatility window.
type EvalOptions struct {
	Strict     bool
	StrictOpts calculator.StrictOptions
	VolWindow  int
}

// DefaultEvalOptions is the lenient screen with a 30-bar volatility window.
func DefaultEvalOptions() EvalOptions {
	return EvalOptions{
		StrictOpts: calculator.DefaultStrictOptions(),
		VolWindow:  calculator.DefaultVolWindow,
	}
}

// Evaluate computes the recommendation for a collected snapshot as of today.
func Evaluate(snap *model.MarketSnapshot, today time.Time, opts EvalOptions) (*model.Recommendation, error) {
	logger := log.WithField("symbol", snap.Symbol)
	price := snap.UnderlyingPrice
	if model.IsMissing(price) || price <= 0 {
		return nil, fmt.Errorf("got %v: %w", price, ErrPriceUnavailable)
	}

	// Step a: ATM implied volatility per expiration
	var sel *model.ATMSelection
	var err error
	if opts.Strict {
		sel, err = calculator.SelectATMStrict(snap.Chains, price, opts.StrictOpts, today)
	} else {
		sel, err = calculator.SelectATM(snap.Chains, price)
	}
	if err != nil {
		return nil, err
	}

	// Step b: term structure over days to expiry
	points := make([]model.TermPoint, 0, len(sel.Expirations))
	for _, exp := range sel.Expirations {
		points = append(points, model.TermPoint{
			DaysToExpiry: calculator.DaysToExpiry(exp, today),
			ATMIV:        sel.ATMIV[exp],
		})
	}
	term := calculator.BuildTermStructure(points)

	rec := &model.Recommendation{
		Symbol:          snap.Symbol,
		UnderlyingPrice: price,
		Straddle:        sel.Straddle,
		ComputedAt:      today,
	}

	// Step c: front-to-45-day slope
	firstDTE := points[0].DaysToExpiry
	if firstDTE < SlopeHorizon {
		slope := (term.At(SlopeHorizon) - term.At(float64(firstDTE))) / float64(SlopeHorizon-firstDTE)
		rec.TSSlope045 = &slope
	} else {
		logger.Warnf("front expiration is %d days out, slope unavailable", firstDTE)
	}

	// Step d: implied versus realized
	rec.IV30 = term.At(IVReferenceDTE)
	if rv, err := calculator.YangZhang(snap.DailyBars, opts.VolWindow, calculator.TradingPeriods); err != nil {
		logger.Warnf("realized volatility unavailable: %v", err)
	} else {
		rec.RV30 = &rv
		if rv > 0 {
			ratio := rec.IV30 / rv
			rec.IV30RV30Value = &ratio
		}
	}

	// Step e: liquidity
	if avg, err := calculator.AverageVolume(snap.DailyBars, calculator.VolumeWindow); err != nil {
		logger.Warnf("average volume unavailable: %v", err)
	} else {
		rec.AvgVolumeValue = &avg
	}

	// Step f: flags and rating
	rec.AvgVolume = avgVolumePasses(rec.AvgVolumeValue)
	rec.IV30RV30 = ivRVPasses(rec.IV30RV30Value)
	rec.Slope = slopePasses(rec.TSSlope045)
	rec.ExpectedMove = ExpectedMove(sel.Straddle, price)
	rec.Rating = Rate(rec.AvgVolume, rec.IV30RV30, rec.Slope)

	return rec, nil
}

// Recommender computes a recommendation for one symbol.
type Recommender interface {
	Compute(ctx context.Context, symbol string) (*model.Recommendation, error)
}

// Engine collects market data and evaluates it.
type Engine struct {
	Collector *collector.Collector
	Opts      EvalOptions
	Now       func() time.Time
}

// NewEngine creates an Engine around c. The collector is used as configured; build its
// options with CollectorOptions so its expiration filter agrees with opts.
func NewEngine(c *collector.Collector, opts EvalOptions) *Engine {
	return &Engine{Collector: c, Opts: opts, Now: time.Now}
}

// CollectorOptions returns a copy of base whose expiration filter matches the evaluation mode.
func (o EvalOptions) CollectorOptions(base collector.Options) collector.Options {
	base.Strict = o.Strict
	if o.Strict {
		base.Horizon = o.StrictOpts.MaxDTE
		base.MinExpirations = o.StrictOpts.MinExpirations
	}
	return base
}

// Compute runs the full pipeline for symbol.
func (e *Engine) Compute(ctx context.Context, symbol string) (*model.Recommendation, error) {
	snap, err := e.Collector.Collect(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	rec, err := Evaluate(snap, e.Now(), e.Opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	log.WithFields(log.Fields{
		"symbol": symbol,
		"rating": rec.Rating,
	}).Debug("recommendation computed")
	return rec, nil
}
