package collector

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"EarningsScreener/internal/calculator"
	"EarningsScreener/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance public chart and options APIs.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	return &YahooFetcher{
		BaseURL: yahooBaseURL,
		Client:  newHTTPClient(proxyURL, false),
		SymbolMap: map[string]string{
			"SPX": "^GSPC",
			"VIX": "^VIX",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooContract struct {
	Strike            float64  `json:"strike"`
	Bid               *float64 `json:"bid"`
	Ask               *float64 `json:"ask"`
	ImpliedVolatility *float64 `json:"impliedVolatility"`
}

type yahooOptions struct {
	OptionChain struct {
		Result []struct {
			ExpirationDates []int64 `json:"expirationDates"`
			Quote           struct {
				RegularMarketPrice         *float64 `json:"regularMarketPrice"`
				RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
				Bid                        *float64 `json:"bid"`
				Ask                        *float64 `json:"ask"`
			} `json:"quote"`
			Options []struct {
				ExpirationDate int64           `json:"expirationDate"`
				Calls          []yahooContract `json:"calls"`
				Puts           []yahooContract `json:"puts"`
			} `json:"options"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"optionChain"`
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol, interval, rng string) ([]model.OHLCV, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), interval, rng)

	var chart yahooChart
	if err := getJSON(ctx, f.Client, u, &chart); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned for %s", symbol)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	at := func(values []interface{}, i int) float64 {
		if i >= len(values) {
			return math.NaN()
		}
		return toFloat(values[i])
	}

	bars := make([]model.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bar := model.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  at(quote.Close, i),
			Volume: at(quote.Volume, i),
		}
		if math.IsNaN(bar.Open) && math.IsNaN(bar.High) && math.IsNaN(bar.Low) && math.IsNaN(bar.Close) {
			continue // holidays and halted sessions
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// FetchDailyBars returns up to n daily bars, covering roughly three months for the default window.
func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol string, n int) ([]model.OHLCV, error) {
	rng := "2y"
	switch {
	case n <= 20:
		rng = "1mo"
	case n <= 60:
		rng = "3mo"
	case n <= 120:
		rng = "6mo"
	case n <= 250:
		rng = "1y"
	}
	bars, err := f.fetchChart(ctx, symbol, "1d", rng)
	if err != nil {
		return nil, err
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

func (f *YahooFetcher) fetchOptions(ctx context.Context, symbol string, expiration *time.Time) (*yahooOptions, error) {
	u := fmt.Sprintf("%s/v7/finance/options/%s", f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)))
	if expiration != nil {
		u += fmt.Sprintf("?date=%d", calculator.CivilDate(*expiration).Unix())
	}

	var opts yahooOptions
	if err := getJSON(ctx, f.Client, u, &opts); err != nil {
		return nil, fmt.Errorf("yahoo options %s: %w", symbol, err)
	}
	if opts.OptionChain.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", opts.OptionChain.Error.Description)
	}
	if len(opts.OptionChain.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no option data for %s", symbol)
	}
	return &opts, nil
}

func (f *YahooFetcher) FetchExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	opts, err := f.fetchOptions(ctx, symbol, nil)
	if err != nil {
		return nil, err
	}
	dates := opts.OptionChain.Result[0].ExpirationDates
	out := make([]time.Time, 0, len(dates))
	for _, ts := range dates {
		out = append(out, calculator.CivilDate(time.Unix(ts, 0).UTC()))
	}
	return out, nil
}

func (f *YahooFetcher) FetchChain(ctx context.Context, symbol string, expiration time.Time) (*model.ExpirationChain, error) {
	opts, err := f.fetchOptions(ctx, symbol, &expiration)
	if err != nil {
		return nil, err
	}
	chain := &model.ExpirationChain{Expiration: calculator.CivilDate(expiration)}
	for _, o := range opts.OptionChain.Result[0].Options {
		chain.Calls = append(chain.Calls, yahooQuotes(o.Calls)...)
		chain.Puts = append(chain.Puts, yahooQuotes(o.Puts)...)
	}
	sortByStrike(chain.Calls)
	sortByStrike(chain.Puts)
	return chain, nil
}

func yahooQuotes(contracts []yahooContract) []model.OptionQuote {
	out := make([]model.OptionQuote, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, model.OptionQuote{
			Strike:     c.Strike,
			Bid:        orNaN(c.Bid),
			Ask:        orNaN(c.Ask),
			ImpliedVol: orNaN(c.ImpliedVolatility),
		})
	}
	return out
}

// FetchUnderlyingPrice falls back from the regular market price to the previous close,
// the quote mid and finally the last daily close.
func (f *YahooFetcher) FetchUnderlyingPrice(ctx context.Context, symbol string) (float64, error) {
	var candidates []float64
	if opts, err := f.fetchOptions(ctx, symbol, nil); err != nil {
		log.WithField("symbol", symbol).Warnf("yahoo quote unavailable: %v", err)
	} else {
		q := opts.OptionChain.Result[0].Quote
		candidates = append(candidates,
			orNaN(q.RegularMarketPrice),
			orNaN(q.RegularMarketPreviousClose),
			midOf(orNaN(q.Bid), orNaN(q.Ask)),
		)
	}
	if p, ok := firstValid(candidates...); ok {
		return p, nil
	}

	bars, err := f.fetchChart(ctx, symbol, "1d", "5d")
	if err != nil {
		return 0, fmt.Errorf("yahoo price %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("yahoo: no price data for %s", symbol)
	}
	return bars[len(bars)-1].Close, nil
}
