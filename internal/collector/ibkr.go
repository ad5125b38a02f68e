package collector

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"EarningsScreener/internal/calculator"
	"EarningsScreener/internal/model"
)

const (
	ibkrBaseURL = "https://localhost:5001/v1/api"

	fieldLast       = "31"
	fieldBid        = "84"
	fieldAsk        = "86"
	fieldImpliedVol = "7283"
	fieldPriorClose = "7741"
)

// IBKRFetcher implements Fetcher against the Interactive Brokers Client Portal gateway.
// The gateway must be running and authenticated; its certificate is self-signed.
type IBKRFetcher struct {
	BaseURL string
	Client  *http.Client

	// StrikeBand and MaxStrikes bound the contracts requested per expiration.
	StrikeBand float64
	MaxStrikes int
	// MaxMonths caps the option months scanned for expirations.
	MaxMonths int

	SettleInterval time.Duration
	SettleTimeout  time.Duration

	limiter *rate.Limiter

	// conids caches only the contract id per symbol. Option months and prices change
	// between sessions and are fetched on every call.
	mu     sync.Mutex
	conids map[string]int
}

type ibkrUnderlying struct {
	conid  int
	months []string
}

type ibkrSearchResult struct {
	ConID    string `json:"conid"`
	Symbol   string `json:"symbol"`
	Sections []struct {
		SecType string `json:"secType"`
		Months  string `json:"months"`
	} `json:"sections"`
}

type ibkrStrikes struct {
	Call []float64 `json:"call"`
	Put  []float64 `json:"put"`
}

type ibkrContractInfo struct {
	ConID        int     `json:"conid"`
	Strike       float64 `json:"strike"`
	Right        string  `json:"right"`
	MaturityDate string  `json:"maturityDate"`
}

type ibkrHistory struct {
	Data []struct {
		T int64   `json:"t"`
		O float64 `json:"o"`
		H float64 `json:"h"`
		L float64 `json:"l"`
		C float64 `json:"c"`
		V float64 `json:"v"`
	} `json:"data"`
}

// NewIBKRFetcher creates a fetcher for the gateway at baseURL (the local default when empty).
func NewIBKRFetcher(baseURL string, strikeBand float64, maxStrikes int) *IBKRFetcher {
	if baseURL == "" {
		baseURL = ibkrBaseURL
	}
	return &IBKRFetcher{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		Client:         newHTTPClient("", true),
		StrikeBand:     strikeBand,
		MaxStrikes:     maxStrikes,
		MaxMonths:      3,
		SettleInterval: 100 * time.Millisecond,
		SettleTimeout:  10 * time.Second,
		limiter:        newRequestLimiter(200 * time.Millisecond),
		conids:         make(map[string]int),
	}
}

func (f *IBKRFetcher) Name() string { return "ibkr" }

func (f *IBKRFetcher) get(ctx context.Context, path string, out interface{}) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	return getJSON(ctx, f.Client, f.BaseURL+path, out)
}

// underlying searches the gateway for the contract id and the currently listed option months.
func (f *IBKRFetcher) underlying(ctx context.Context, symbol string) (ibkrUnderlying, error) {
	var u ibkrUnderlying
	var results []ibkrSearchResult
	if err := f.get(ctx, "/iserver/secdef/search?symbol="+symbol, &results); err != nil {
		return u, fmt.Errorf("ibkr search %s: %w", symbol, err)
	}
	for _, r := range results {
		conid, err := strconv.Atoi(r.ConID)
		if err != nil {
			continue
		}
		for _, s := range r.Sections {
			if s.SecType != "OPT" || s.Months == "" {
				continue
			}
			u = ibkrUnderlying{conid: conid, months: strings.Split(s.Months, ";")}
			f.mu.Lock()
			f.conids[symbol] = conid
			f.mu.Unlock()
			return u, nil
		}
	}
	return u, fmt.Errorf("ibkr: no options listed for %s", symbol)
}

// conid returns the cached contract id of a symbol, searching when it is unknown.
func (f *IBKRFetcher) conid(ctx context.Context, symbol string) (int, error) {
	f.mu.Lock()
	id, ok := f.conids[symbol]
	f.mu.Unlock()
	if ok {
		return id, nil
	}
	u, err := f.underlying(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return u.conid, nil
}

// snapshot subscribes to the given fields and polls until every contract reports the required
// ones or the settle timeout passes. Contracts that never settle are returned as they are.
func (f *IBKRFetcher) snapshot(ctx context.Context, conids []int, fields, required []string) (map[int]map[string]interface{}, error) {
	ids := make([]string, len(conids))
	for i, c := range conids {
		ids[i] = strconv.Itoa(c)
	}
	path := fmt.Sprintf("/iserver/marketdata/snapshot?conids=%s&fields=%s",
		strings.Join(ids, ","), strings.Join(fields, ","))

	var latest map[int]map[string]interface{}
	var lastErr error
	AwaitSettled(ctx, f.SettleInterval, f.SettleTimeout, func() bool {
		var rows []map[string]interface{}
		if err := f.get(ctx, path, &rows); err != nil {
			lastErr = err
			return false
		}
		latest = make(map[int]map[string]interface{}, len(rows))
		for _, row := range rows {
			latest[int(toFloat(row["conid"]))] = row
		}
		return snapshotComplete(latest, conids, required)
	})
	if latest == nil {
		return nil, fmt.Errorf("ibkr snapshot: %w", lastErr)
	}
	return latest, nil
}

func snapshotComplete(rows map[int]map[string]interface{}, conids []int, required []string) bool {
	for _, c := range conids {
		row, ok := rows[c]
		if !ok {
			return false
		}
		for _, field := range required {
			if math.IsNaN(toFloat(row[field])) {
				return false
			}
		}
	}
	return true
}

func snapshotField(rows map[int]map[string]interface{}, conid int, field string) float64 {
	row, ok := rows[conid]
	if !ok {
		return math.NaN()
	}
	return toFloat(row[field])
}

// FetchExpirations re-reads the listed option months and asks one contract per month
// for its maturity date.
func (f *IBKRFetcher) FetchExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	u, err := f.underlying(ctx, symbol)
	if err != nil {
		return nil, err
	}
	months := u.months
	if f.MaxMonths > 0 && len(months) > f.MaxMonths {
		months = months[:f.MaxMonths]
	}

	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, month := range months {
		strikes, err := f.strikes(ctx, u.conid, month)
		if err != nil {
			log.WithField("symbol", symbol).Warnf("ibkr strikes for %s: %v", month, err)
			continue
		}
		if len(strikes.Call) == 0 {
			continue
		}
		mid := strikes.Call[len(strikes.Call)/2]
		contracts, err := f.contractInfo(ctx, u.conid, month, mid, "C")
		if err != nil {
			log.WithField("symbol", symbol).Warnf("ibkr contract info for %s: %v", month, err)
			continue
		}
		for _, c := range contracts {
			exp, err := time.Parse("20060102", c.MaturityDate)
			if err != nil || seen[exp] {
				continue
			}
			seen[exp] = true
			out = append(out, exp)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ibkr: no expirations resolved for %s", symbol)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (f *IBKRFetcher) strikes(ctx context.Context, conid int, month string) (*ibkrStrikes, error) {
	var s ibkrStrikes
	path := fmt.Sprintf("/iserver/secdef/strikes?conid=%d&sectype=OPT&month=%s", conid, month)
	if err := f.get(ctx, path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (f *IBKRFetcher) contractInfo(ctx context.Context, conid int, month string, strike float64, right string) ([]ibkrContractInfo, error) {
	var contracts []ibkrContractInfo
	path := fmt.Sprintf("/iserver/secdef/info?conid=%d&sectype=OPT&month=%s&strike=%s&right=%s",
		conid, month, strconv.FormatFloat(strike, 'f', -1, 64), right)
	if err := f.get(ctx, path, &contracts); err != nil {
		return nil, err
	}
	return contracts, nil
}

// FetchChain resolves calls and puts near the underlying price for one expiration and snapshots them.
// The price is quoted fresh on every call so the strike window follows the market.
func (f *IBKRFetcher) FetchChain(ctx context.Context, symbol string, expiration time.Time) (*model.ExpirationChain, error) {
	conid, err := f.conid(ctx, symbol)
	if err != nil {
		return nil, err
	}
	price, err := f.FetchUnderlyingPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	month := strings.ToUpper(expiration.Format("Jan06"))
	listed, err := f.strikes(ctx, conid, month)
	if err != nil {
		return nil, fmt.Errorf("ibkr strikes %s %s: %w", symbol, month, err)
	}
	strikes := f.candidateStrikes(append(append([]float64(nil), listed.Call...), listed.Put...), price)

	want := expiration.Format("20060102")
	type leg struct {
		right  string
		strike float64
	}
	legs := make(map[int]leg)
	var conids []int
	for _, strike := range strikes {
		for _, right := range []string{"C", "P"} {
			contracts, err := f.contractInfo(ctx, conid, month, strike, right)
			if err != nil {
				log.WithField("symbol", symbol).Debugf("ibkr contract %s %v%s: %v", month, strike, right, err)
				continue
			}
			for _, c := range contracts {
				if c.MaturityDate != want {
					continue
				}
				legs[c.ConID] = leg{right: right, strike: strike}
				conids = append(conids, c.ConID)
			}
		}
	}
	if len(conids) == 0 {
		return nil, fmt.Errorf("ibkr: no contracts for %s expiring %s", symbol, want)
	}

	rows, err := f.snapshot(ctx, conids,
		[]string{fieldLast, fieldBid, fieldAsk, fieldImpliedVol},
		[]string{fieldBid, fieldAsk})
	if err != nil {
		return nil, err
	}

	chain := &model.ExpirationChain{Expiration: calculator.CivilDate(expiration)}
	for _, conid := range conids {
		l := legs[conid]
		q := model.OptionQuote{
			Strike:     l.strike,
			Bid:        snapshotField(rows, conid, fieldBid),
			Ask:        snapshotField(rows, conid, fieldAsk),
			ImpliedVol: snapshotField(rows, conid, fieldImpliedVol),
		}
		if l.right == "C" {
			chain.Calls = append(chain.Calls, q)
		} else {
			chain.Puts = append(chain.Puts, q)
		}
	}
	sortByStrike(chain.Calls)
	sortByStrike(chain.Puts)
	return chain, nil
}

// candidateStrikes keeps the distinct strikes inside the band, trimmed to a centred window.
func (f *IBKRFetcher) candidateStrikes(listed []float64, price float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, s := range listed {
		if seen[s] {
			continue
		}
		if f.StrikeBand > 0 && (s <= price*(1-f.StrikeBand) || s >= price*(1+f.StrikeBand)) {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Float64s(out)
	if f.MaxStrikes > 0 {
		out = calculator.CenterWindow(out, f.MaxStrikes)
	}
	return out
}

// FetchUnderlyingPrice falls back from last to prior close, the quote mid and the last daily close.
func (f *IBKRFetcher) FetchUnderlyingPrice(ctx context.Context, symbol string) (float64, error) {
	conid, err := f.conid(ctx, symbol)
	if err != nil {
		return 0, err
	}
	rows, err := f.snapshot(ctx, []int{conid},
		[]string{fieldLast, fieldBid, fieldAsk, fieldPriorClose},
		[]string{fieldLast})
	if err != nil {
		log.WithField("symbol", symbol).Warnf("ibkr quote unavailable: %v", err)
	}

	price, ok := firstValid(
		snapshotField(rows, conid, fieldLast),
		snapshotField(rows, conid, fieldPriorClose),
		midOf(snapshotField(rows, conid, fieldBid), snapshotField(rows, conid, fieldAsk)),
	)
	if !ok {
		bars, err := f.FetchDailyBars(ctx, symbol, 5)
		if err != nil || len(bars) == 0 {
			return 0, fmt.Errorf("ibkr: no price for %s", symbol)
		}
		price = bars[len(bars)-1].Close
	}
	return price, nil
}

func (f *IBKRFetcher) FetchDailyBars(ctx context.Context, symbol string, n int) ([]model.OHLCV, error) {
	conid, err := f.conid(ctx, symbol)
	if err != nil {
		return nil, err
	}
	// n trading days span roughly 7/5 as many calendar days
	period := n*7/5 + 5
	var hist ibkrHistory
	path := fmt.Sprintf("/iserver/marketdata/history?conid=%d&period=%dd&bar=1d", conid, period)
	if err := f.get(ctx, path, &hist); err != nil {
		return nil, fmt.Errorf("ibkr history %s: %w", symbol, err)
	}

	bars := make([]model.OHLCV, 0, len(hist.Data))
	for _, d := range hist.Data {
		bars = append(bars, model.OHLCV{
			Time:   time.UnixMilli(d.T).UTC(),
			Open:   d.O,
			High:   d.H,
			Low:    d.L,
			Close:  d.C,
			Volume: d.V,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}
