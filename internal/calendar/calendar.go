// Package calendar loads upcoming earnings announcements and picks the ones worth screening.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"EarningsScreener/internal/calculator"
	"EarningsScreener/internal/model"
)

// Source lists earnings events dated within [from, to].
type Source interface {
	Events(ctx context.Context, from, to time.Time) ([]model.EarningsEvent, error)
	Name() string
}

// IsLikelyUSSymbol filters out foreign listings and OTC tickers the option feeds rarely cover.
func IsLikelyUSSymbol(symbol string) bool {
	if symbol == "" || len(symbol) > 5 {
		return false
	}
	if strings.Contains(symbol, ".") || strings.HasSuffix(symbol, "F") {
		return false
	}
	for _, r := range symbol {
		if unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Targets names the two announcement slots traded on a given day.
type Targets struct {
	AfterClose time.Time // today, amc
	BeforeOpen time.Time // next business day, bmo
}

// SessionTargets returns today's after-close slot and the next business day's before-open slot.
func SessionTargets(today time.Time) Targets {
	d := calculator.CivilDate(today)
	next := d.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return Targets{AfterClose: d, BeforeOpen: next}
}

// SelectSession keeps today's after-close and the next session's before-open announcements of
// likely US symbols, after-close first. Duplicate symbols keep their first occurrence.
func SelectSession(events []model.EarningsEvent, today time.Time) []model.EarningsEvent {
	t := SessionTargets(today)
	var amc, bmo []model.EarningsEvent
	seen := make(map[string]bool)
	for _, e := range events {
		sym := strings.ToUpper(strings.TrimSpace(e.Symbol))
		if !IsLikelyUSSymbol(sym) || seen[sym] {
			continue
		}
		e.Symbol = sym
		date := calculator.CivilDate(e.Date)
		switch {
		case e.Session == model.SessionAfterClose && date.Equal(t.AfterClose):
			amc = append(amc, e)
		case e.Session == model.SessionBeforeOpen && date.Equal(t.BeforeOpen):
			bmo = append(bmo, e)
		default:
			continue
		}
		seen[sym] = true
	}
	return append(amc, bmo...)
}

// ParseSession normalizes provider session labels.
func ParseSession(s string) model.Session {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "amc", "after market close", "after-close":
		return model.SessionAfterClose
	case "bmo", "before market open", "pre-market":
		return model.SessionBeforeOpen
	case "dmh", "during market hours":
		return model.SessionDuringHours
	default:
		return ""
	}
}

// Upcoming loads the events for today's screening session from src.
func Upcoming(ctx context.Context, src Source, today time.Time) ([]model.EarningsEvent, error) {
	t := SessionTargets(today)
	events, err := src.Events(ctx, t.AfterClose, t.BeforeOpen)
	if err != nil {
		return nil, fmt.Errorf("%s calendar: %w", src.Name(), err)
	}
	return SelectSession(events, today), nil
}
