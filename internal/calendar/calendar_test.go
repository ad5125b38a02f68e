package calendar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EarningsScreener/internal/calculator"
	"EarningsScreener/internal/model"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIsLikelyUSSymbol(t *testing.T) {
	for _, s := range []string{"AAPL", "T", "GOOGL", "BRK"} {
		assert.True(t, IsLikelyUSSymbol(s), s)
	}
	for _, s := range []string{"", "TOOLONG", "BRK.B", "NSRGF", "8058", "AB1"} {
		assert.False(t, IsLikelyUSSymbol(s), s)
	}
}

func TestSessionTargets(t *testing.T) {
	tests := []struct {
		today string
		bmo   string
	}{
		{"2024-03-04", "2024-03-05"}, // Monday
		{"2024-03-07", "2024-03-08"}, // Thursday
		{"2024-03-08", "2024-03-11"}, // Friday
		{"2024-03-09", "2024-03-11"}, // Saturday
	}
	for _, tt := range tests {
		got := SessionTargets(date(tt.today))
		assert.Equal(t, date(tt.today), got.AfterClose)
		assert.Equal(t, date(tt.bmo), got.BeforeOpen, tt.today)
	}
}

func TestSelectSession(t *testing.T) {
	friday := date("2024-03-08")
	events := []model.EarningsEvent{
		{Symbol: "BMO1", Date: date("2024-03-11"), Session: model.SessionBeforeOpen},
		{Symbol: "AMC1", Date: friday, Session: model.SessionAfterClose},
		{Symbol: "bmo2", Date: date("2024-03-11"), Session: model.SessionBeforeOpen},
		{Symbol: "SKIP", Date: friday, Session: model.SessionBeforeOpen},
		{Symbol: "LATE", Date: date("2024-03-11"), Session: model.SessionAfterClose},
		{Symbol: "NSRGF", Date: friday, Session: model.SessionAfterClose},
		{Symbol: "AMC1", Date: friday, Session: model.SessionAfterClose},
	}
	got := SelectSession(events, friday)
	var syms []string
	for _, e := range got {
		syms = append(syms, e.Symbol)
	}
	assert.Equal(t, []string{"AMC1", "BMO1", "BMO2"}, syms)
}

func TestSelectSession_UsesWallClockDates(t *testing.T) {
	ny := time.FixedZone("EST", -5*3600)
	// late evening in New York is already the next day in UTC
	today := time.Date(2024, 3, 7, 22, 30, 0, 0, ny)
	events := []model.EarningsEvent{
		{Symbol: "AMC1", Date: time.Date(2024, 3, 7, 16, 5, 0, 0, ny), Session: model.SessionAfterClose},
		{Symbol: "BMO1", Date: time.Date(2024, 3, 8, 7, 0, 0, 0, ny), Session: model.SessionBeforeOpen},
	}
	got := SelectSession(events, today)
	require.Len(t, got, 2)
	assert.Equal(t, "AMC1", got[0].Symbol)
	assert.Equal(t, "BMO1", got[1].Symbol)

	targets := SessionTargets(today)
	assert.Equal(t, calculator.CivilDate(today), targets.AfterClose)
	assert.Equal(t, time.UTC, targets.AfterClose.Location())
}

func TestParseSession(t *testing.T) {
	assert.Equal(t, model.SessionAfterClose, ParseSession("AMC"))
	assert.Equal(t, model.SessionBeforeOpen, ParseSession(" bmo "))
	assert.Equal(t, model.SessionDuringHours, ParseSession("dmh"))
	assert.Equal(t, model.Session(""), ParseSession(""))
}

func TestCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.csv")
	content := "ticker,company_name,announcement_date,announcement_time,market_cap\n" +
		"AAPL,Apple Inc,2024-03-08,amc,2800000\n" +
		"MSFT,Microsoft,2024-03-11,bmo,3000000\n" +
		"OLD,Old Co,2024-02-01,amc,10\n" +
		"BAD,Bad Co,not-a-date,amc,10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	events, err := NewCSVSource(path).Events(context.Background(), date("2024-03-08"), date("2024-03-11"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "AAPL", events[0].Symbol)
	assert.Equal(t, "Apple Inc", events[0].Company)
	assert.Equal(t, model.SessionAfterClose, events[0].Session)
	assert.Equal(t, model.SessionBeforeOpen, events[1].Session)
}

func TestCSVSource_MissingFile(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv")).Events(context.Background(), date("2024-03-08"), date("2024-03-08"))
	assert.Error(t, err)
}

func TestFinnhubSource_QueriesEachDay(t *testing.T) {
	var days []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := r.URL.Query().Get("from")
		days = append(days, d)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		fmt.Fprintf(w, `{"earningsCalendar":[{"date":"%s","symbol":"X%d","hour":"amc"}]}`, d, len(days))
	}))
	defer srv.Close()

	src := NewFinnhubSource("secret")
	src.BaseURL = srv.URL
	src.MinDelay, src.MaxDelay = 0, time.Millisecond

	events, err := src.Events(context.Background(), date("2024-03-08"), date("2024-03-10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-08", "2024-03-09", "2024-03-10"}, days)
	require.Len(t, events, 3)
	assert.Equal(t, model.SessionAfterClose, events[0].Session)
	assert.Equal(t, date("2024-03-10"), events[2].Date)
}

func TestUpcoming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("from") {
		case "2024-03-07":
			w.Write([]byte(`{"earningsCalendar":[{"date":"2024-03-07","symbol":"AMC","hour":"amc"},{"date":"2024-03-07","symbol":"EARLY","hour":"bmo"}]}`))
		case "2024-03-08":
			w.Write([]byte(`{"earningsCalendar":[{"date":"2024-03-08","symbol":"BMO","hour":"bmo"}]}`))
		default:
			http.Error(w, "unexpected", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	src := NewFinnhubSource("k")
	src.BaseURL = srv.URL
	src.MaxDelay = 0

	events, err := Upcoming(context.Background(), src, date("2024-03-07"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "AMC", events[0].Symbol)
	assert.Equal(t, "BMO", events[1].Symbol)
}
