package calculator

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"EarningsScreener/internal/model"
)

// ErrNoViableChain means no expiration produced an ATM implied volatility.
var ErrNoViableChain = errors.New("no viable option chain")

// StrictOptions narrows ATM selection for brokerage feeds.
type StrictOptions struct {
	// StrikeBand keeps strikes strictly within price*(1±StrikeBand).
	StrikeBand float64
	// MaxStrikes is the size of the centred strike window.
	MaxStrikes int
	// MaxDTE excludes expirations at or beyond this many days.
	MaxDTE int
	// MinExpirations is the least number of expirations required.
	MinExpirations int
}

// DefaultStrictOptions mirrors the live brokerage screen.
func DefaultStrictOptions() StrictOptions {
	return StrictOptions{StrikeBand: 0.20, MaxStrikes: 6, MaxDTE: HorizonDays, MinExpirations: 2}
}

// SelectATM picks the at-the-money call and put of every expiration.
// Expirations with an empty side are skipped; the straddle is priced on the first one processed.
func SelectATM(chains []model.ExpirationChain, price float64) (*model.ATMSelection, error) {
	return selectATM(chains, price, func(c model.ExpirationChain) (model.OptionQuote, model.OptionQuote, bool) {
		ci := nearestStrike(c.Calls, price)
		pi := nearestStrike(c.Puts, price)
		if ci < 0 || pi < 0 {
			return model.OptionQuote{}, model.OptionQuote{}, false
		}
		return c.Calls[ci], c.Puts[pi], true
	})
}

// SelectATMStrict restricts candidates to a band around price and a centred window of strikes,
// and only considers expirations fewer than opts.MaxDTE days from today.
func SelectATMStrict(chains []model.ExpirationChain, price float64, opts StrictOptions, today time.Time) (*model.ATMSelection, error) {
	var eligible []model.ExpirationChain
	for _, c := range chains {
		dte := DaysToExpiry(c.Expiration, today)
		if dte >= 0 && dte < opts.MaxDTE {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) < opts.MinExpirations {
		return nil, fmt.Errorf("found %d expirations under %d days, need %d: %w",
			len(eligible), opts.MaxDTE, opts.MinExpirations, ErrInsufficientExpirations)
	}

	return selectATM(eligible, price, func(c model.ExpirationChain) (model.OptionQuote, model.OptionQuote, bool) {
		all := append(append([]model.OptionQuote(nil), c.Calls...), c.Puts...)
		strikes := CenterWindow(bandStrikes(all, price, opts.StrikeBand), opts.MaxStrikes)
		calls := quotesAt(c.Calls, strikes)
		puts := quotesAt(c.Puts, strikes)
		ci := nearestStrike(calls, price)
		if ci < 0 || len(puts) == 0 {
			return model.OptionQuote{}, model.OptionQuote{}, false
		}
		call := calls[ci]
		for _, p := range puts {
			if p.Strike == call.Strike {
				return call, p, true
			}
		}
		return call, puts[nearestStrike(puts, price)], true
	})
}

type pickFunc func(model.ExpirationChain) (call, put model.OptionQuote, ok bool)

func selectATM(chains []model.ExpirationChain, price float64, pick pickFunc) (*model.ATMSelection, error) {
	sel := &model.ATMSelection{ATMIV: make(map[time.Time]float64)}
	processed := 0

	for _, c := range chains {
		if len(c.Calls) == 0 || len(c.Puts) == 0 {
			continue
		}
		call, put, ok := pick(c)
		if !ok {
			continue
		}

		if processed == 0 {
			sel.Straddle = straddlePrice(call, put)
		}
		processed++

		iv := (call.ImpliedVol + put.ImpliedVol) / 2.0
		if model.IsMissing(iv) || iv <= 0 {
			log.WithField("expiration", c.Expiration.Format("2006-01-02")).
				Warnf("skipping expiration: ATM implied volatility unavailable (call=%v put=%v)", call.ImpliedVol, put.ImpliedVol)
			continue
		}
		sel.Expirations = append(sel.Expirations, c.Expiration)
		sel.ATMIV[c.Expiration] = iv
	}

	if len(sel.Expirations) == 0 {
		return nil, ErrNoViableChain
	}
	return sel, nil
}

func straddlePrice(call, put model.OptionQuote) *float64 {
	callMid, ok := call.Mid()
	if !ok {
		return nil
	}
	putMid, ok := put.Mid()
	if !ok {
		return nil
	}
	s := callMid + putMid
	return &s
}

// nearestStrike returns the index of the first quote whose strike is closest to price, or -1.
func nearestStrike(quotes []model.OptionQuote, price float64) int {
	best := -1
	bestDiff := math.Inf(1)
	for i, q := range quotes {
		d := math.Abs(q.Strike - price)
		if d < bestDiff {
			best = i
			bestDiff = d
		}
	}
	return best
}

// bandStrikes returns the sorted distinct strikes strictly inside price*(1±band).
func bandStrikes(quotes []model.OptionQuote, price, band float64) []float64 {
	lo, hi := price*(1-band), price*(1+band)
	seen := make(map[float64]bool)
	var out []float64
	for _, q := range quotes {
		if q.Strike > lo && q.Strike < hi && !seen[q.Strike] {
			seen[q.Strike] = true
			out = append(out, q.Strike)
		}
	}
	sort.Float64s(out)
	return out
}

func quotesAt(quotes []model.OptionQuote, strikes []float64) []model.OptionQuote {
	keep := make(map[float64]bool, len(strikes))
	for _, s := range strikes {
		keep[s] = true
	}
	var out []model.OptionQuote
	for _, q := range quotes {
		if keep[q.Strike] {
			out = append(out, q)
		}
	}
	return out
}

// CenterWindow keeps the middle n values. Excess is removed evenly from both ends,
// with an odd remainder taken from the high end.
func CenterWindow(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	excess := len(values) - n
	front := excess / 2
	back := excess - front
	return values[front : len(values)-back]
}
