package strategy

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"EarningsScreener/internal/collector"
	"EarningsScreener/internal/model"
)

// DefaultConcurrency bounds parallel symbol screens.
const DefaultConcurrency = 4

// BatchReport partitions the outcome of a batch.
type BatchReport struct {
	// Rated holds Go and Consider results, best first.
	Rated []model.ScreenResult
	// Rejected holds symbols that computed but rated Reject.
	Rejected []model.ScreenResult
	// Failures holds symbols whose computation errored.
	Failures []model.ScreenResult
	// Filtered lists symbols dropped by the market cap gate.
	Filtered []model.EarningsEvent
}

// Screener runs a Recommender over many symbols.
type Screener struct {
	Engine             Recommender
	MarketCap          collector.MarketCapFilter
	MarketCapThreshold float64
	Concurrency        int
}

// NewScreener creates a Screener. A nil filter passes every symbol.
func NewScreener(engine Recommender, filter collector.MarketCapFilter, threshold float64, concurrency int) *Screener {
	if filter == nil {
		filter = collector.AllowAllFilter{}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Screener{Engine: engine, MarketCap: filter, MarketCapThreshold: threshold, Concurrency: concurrency}
}

type outcome struct {
	result   model.ScreenResult
	filtered bool
}

// Screen evaluates every event independently. A failing symbol is logged and reported;
// only cancellation of ctx aborts the batch.
func (s *Screener) Screen(ctx context.Context, events []model.EarningsEvent) (*BatchReport, error) {
	outcomes := make([]outcome, len(events))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for i, evt := range events {
		i, evt := i, evt
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !s.MarketCap.Passes(gctx, evt.Symbol, s.MarketCapThreshold) {
				outcomes[i] = outcome{result: model.ScreenResult{Event: evt}, filtered: true}
				return nil
			}
			rec, err := s.Engine.Compute(gctx, evt.Symbol)
			if err != nil {
				log.WithField("symbol", evt.Symbol).Warnf("screen failed: %v", err)
			}
			outcomes[i] = outcome{result: model.ScreenResult{Event: evt, Recommendation: rec, Err: err}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &BatchReport{}
	for _, o := range outcomes {
		switch {
		case o.filtered:
			report.Filtered = append(report.Filtered, o.result.Event)
		case o.result.Err != nil:
			report.Failures = append(report.Failures, o.result)
		case o.result.Recommendation.Rating == model.RatingReject:
			report.Rejected = append(report.Rejected, o.result)
		default:
			report.Rated = append(report.Rated, o.result)
		}
	}
	SortRated(report.Rated)

	log.Infof("screened %d symbols: %d rated, %d rejected, %d failed, %d below market cap",
		len(events), len(report.Rated), len(report.Rejected), len(report.Failures), len(report.Filtered))
	return report, nil
}

func ratingRank(r model.Rating) int {
	switch r {
	case model.RatingGo:
		return 0
	case model.RatingConsider:
		return 1
	default:
		return 2
	}
}

// SortRated orders results Go before Consider, then by expected move descending.
// Ties keep their input order.
func SortRated(results []model.ScreenResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Recommendation, results[j].Recommendation
		if ra, rb := ratingRank(a.Rating), ratingRank(b.Rating); ra != rb {
			return ra < rb
		}
		return ParseExpectedMove(a.ExpectedMove) > ParseExpectedMove(b.ExpectedMove)
	})
}
