package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDaysToExpiry(t *testing.T) {
	today := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysToExpiry(day("2024-03-01"), today))
	assert.Equal(t, 7, DaysToExpiry(day("2024-03-08"), today))
	assert.Equal(t, 45, DaysToExpiry(day("2024-04-15"), today))
}

func TestFilterExpirations_CutsAfterHorizon(t *testing.T) {
	today := day("2024-03-01")
	exps := []time.Time{
		day("2024-05-17"), day("2024-03-08"), day("2024-03-15"),
		day("2024-04-19"), day("2024-06-21"),
	}
	got, err := FilterExpirations(exps, today, HorizonDays)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2024-03-08"), day("2024-03-15"), day("2024-04-19")}, got)
}

func TestFilterExpirations_DropsSameDay(t *testing.T) {
	today := day("2024-03-01")
	got, err := FilterExpirations([]time.Time{today, day("2024-03-08"), day("2024-04-19")}, today, HorizonDays)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2024-03-08"), day("2024-04-19")}, got)
}

func TestFilterExpirations_NoneFarEnough(t *testing.T) {
	today := day("2024-03-01")
	_, err := FilterExpirations([]time.Time{day("2024-03-08"), day("2024-03-15")}, today, HorizonDays)
	assert.ErrorIs(t, err, ErrNoExpirations)

	_, err = FilterExpirations(nil, today, HorizonDays)
	assert.ErrorIs(t, err, ErrNoExpirations)
}

func TestFilterExpirationsStrict(t *testing.T) {
	today := day("2024-03-01")
	exps := []time.Time{day("2024-03-08"), day("2024-03-15"), day("2024-04-15"), day("2024-04-19")}

	got, err := FilterExpirationsStrict(exps, today, HorizonDays, 2)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2024-03-08"), day("2024-03-15")}, got)

	_, err = FilterExpirationsStrict(exps[2:], today, HorizonDays, 2)
	assert.ErrorIs(t, err, ErrInsufficientExpirations)
}
