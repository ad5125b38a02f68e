package calculator

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrNoExpirations means no expiration falls inside the screening horizon.
	ErrNoExpirations = errors.New("no usable expirations")
	// ErrInsufficientExpirations means the strict selector found fewer than the required expirations.
	ErrInsufficientExpirations = errors.New("not enough expirations")
)

// HorizonDays is the far end of the term structure the screen looks at.
const HorizonDays = 45

// CivilDate truncates t to midnight UTC of its calendar date.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysToExpiry returns the number of calendar days between today and expiration.
func DaysToExpiry(expiration, today time.Time) int {
	return int(CivilDate(expiration).Sub(CivilDate(today)).Hours() / 24)
}

// FilterExpirations sorts expirations and keeps every date up to and including the first
// one at least horizon days out. Expirations on or before today are dropped.
func FilterExpirations(expirations []time.Time, today time.Time, horizon int) ([]time.Time, error) {
	sorted := sortedDates(expirations)

	cut := -1
	for i, exp := range sorted {
		if DaysToExpiry(exp, today) >= horizon {
			cut = i
			break
		}
	}
	if cut < 0 {
		return nil, fmt.Errorf("no expiration %d or more days out: %w", horizon, ErrNoExpirations)
	}

	var out []time.Time
	for _, exp := range sorted[:cut+1] {
		if DaysToExpiry(exp, today) <= 0 {
			continue
		}
		out = append(out, exp)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("only same-day expirations: %w", ErrNoExpirations)
	}
	return out, nil
}

// FilterExpirationsStrict keeps future expirations strictly fewer than maxDTE days out and
// requires at least minCount of them.
func FilterExpirationsStrict(expirations []time.Time, today time.Time, maxDTE, minCount int) ([]time.Time, error) {
	var out []time.Time
	for _, exp := range sortedDates(expirations) {
		dte := DaysToExpiry(exp, today)
		if dte >= 0 && dte < maxDTE {
			out = append(out, exp)
		}
	}
	if len(out) < minCount {
		return nil, fmt.Errorf("found %d expirations under %d days, need %d: %w",
			len(out), maxDTE, minCount, ErrInsufficientExpirations)
	}
	return out, nil
}

func sortedDates(dates []time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates))
	seen := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		c := CivilDate(d)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
