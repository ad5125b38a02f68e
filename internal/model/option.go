package model

import "time"

// OptionQuote is one contract of a chain. Bid, Ask and ImpliedVol are NaN when absent.
type OptionQuote struct {
	Strike     float64
	Bid        float64
	Ask        float64
	ImpliedVol float64
}

// Mid returns (bid+ask)/2. ok is false unless both sides are quoted.
func (q OptionQuote) Mid() (mid float64, ok bool) {
	if IsMissing(q.Bid) || IsMissing(q.Ask) {
		return 0, false
	}
	return (q.Bid + q.Ask) / 2, true
}

// ExpirationChain holds the calls and puts of one expiration, each ordered by strike.
type ExpirationChain struct {
	Expiration time.Time
	Calls      []OptionQuote
	Puts       []OptionQuote
}

// TermPoint is one knot of the implied volatility term structure.
type TermPoint struct {
	DaysToExpiry int
	ATMIV        float64
}

// ATMSelection is the output of ATM selection across a chain.
type ATMSelection struct {
	// Expirations in provider order, one per expiration that produced an ATM IV.
	Expirations []time.Time
	ATMIV       map[time.Time]float64
	// Straddle is the front expiration's call mid + put mid; nil when a leg is unquoted.
	Straddle *float64
}
