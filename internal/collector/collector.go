package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"EarningsScreener/internal/calculator"
	"EarningsScreener/internal/model"
)

var (
	// ErrNoValidChains means every expiration's chain failed to load.
	ErrNoValidChains = errors.New("no valid option chains")
	// ErrPriceUnavailable means the underlying price could not be determined.
	ErrPriceUnavailable = errors.New("underlying price unavailable")
)

// Options controls which expirations are fetched and how much history is requested.
type Options struct {
	// Strict limits expirations to fewer than Horizon days and requires MinExpirations of them.
	Strict         bool
	Horizon        int
	MinExpirations int
	HistoryBars    int
}

// DefaultOptions matches the lenient screen.
func DefaultOptions() Options {
	return Options{
		Horizon:        calculator.HorizonDays,
		MinExpirations: 2,
		HistoryBars:    90,
	}
}

// Collector gathers the market data a recommendation needs.
type Collector struct {
	Chains  OptionChainProvider
	History PriceHistoryProvider
	Opts    Options
	Now     func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(chains OptionChainProvider, history PriceHistoryProvider, opts Options) *Collector {
	return &Collector{Chains: chains, History: history, Opts: opts, Now: time.Now}
}

// Collect fetches expirations, chains, the underlying price and daily history for symbol.
// A failed chain is skipped and a failed history fetch leaves DailyBars empty.
func (c *Collector) Collect(ctx context.Context, symbol string) (*model.MarketSnapshot, error) {
	logger := log.WithField("symbol", symbol)
	today := c.Now()

	listed, err := c.Chains.FetchExpirations(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch expirations: %w", err)
	}

	var expirations []time.Time
	if c.Opts.Strict {
		expirations, err = calculator.FilterExpirationsStrict(listed, today, c.Opts.Horizon, c.Opts.MinExpirations)
	} else {
		expirations, err = calculator.FilterExpirations(listed, today, c.Opts.Horizon)
	}
	if err != nil {
		return nil, err
	}

	snap := &model.MarketSnapshot{Symbol: symbol, FetchedAt: today}
	for _, exp := range expirations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chain, err := c.Chains.FetchChain(ctx, symbol, exp)
		if err != nil {
			logger.Warnf("skipping expiration %s: %v", exp.Format("2006-01-02"), err)
			continue
		}
		snap.Chains = append(snap.Chains, *chain)
	}
	if len(snap.Chains) == 0 {
		return nil, fmt.Errorf("%d expirations tried: %w", len(expirations), ErrNoValidChains)
	}

	price, err := c.Chains.FetchUnderlyingPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}
	if model.IsMissing(price) || price <= 0 {
		return nil, fmt.Errorf("got %v: %w", price, ErrPriceUnavailable)
	}
	snap.UnderlyingPrice = price

	bars, err := c.History.FetchDailyBars(ctx, symbol, c.Opts.HistoryBars)
	if err != nil {
		logger.Warnf("daily history unavailable from %s: %v", c.History.Name(), err)
	} else {
		snap.DailyBars = bars
	}

	return snap, nil
}

func sortByStrike(quotes []model.OptionQuote) {
	sort.SliceStable(quotes, func(i, j int) bool { return quotes[i].Strike < quotes[j].Strike })
}
