package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"EarningsScreener/internal/calculator"
	"EarningsScreener/internal/model"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubSource reads the Finnhub earnings calendar one day at a time.
type FinnhubSource struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	// MinDelay and MaxDelay bound the randomized pause between day requests.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// NewFinnhubSource creates a source for apiKey.
func NewFinnhubSource(apiKey string) *FinnhubSource {
	return &FinnhubSource{
		BaseURL:  finnhubBaseURL,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 30 * time.Second},
		MinDelay: 500 * time.Millisecond,
		MaxDelay: 1500 * time.Millisecond,
	}
}

func (s *FinnhubSource) Name() string { return "finnhub" }

type finnhubCalendar struct {
	EarningsCalendar []struct {
		Date   string `json:"date"`
		Symbol string `json:"symbol"`
		Hour   string `json:"hour"`
	} `json:"earningsCalendar"`
}

func (s *FinnhubSource) Events(ctx context.Context, from, to time.Time) ([]model.EarningsEvent, error) {
	var events []model.EarningsEvent
	for day := calculator.CivilDate(from); !day.After(calculator.CivilDate(to)); day = day.AddDate(0, 0, 1) {
		if !day.Equal(calculator.CivilDate(from)) {
			if err := s.pause(ctx); err != nil {
				return nil, err
			}
		}
		dayEvents, err := s.fetchDay(ctx, day)
		if err != nil {
			return nil, err
		}
		events = append(events, dayEvents...)
	}
	log.Infof("finnhub: %d earnings records between %s and %s",
		len(events), from.Format("2006-01-02"), to.Format("2006-01-02"))
	return events, nil
}

func (s *FinnhubSource) fetchDay(ctx context.Context, day time.Time) ([]model.EarningsEvent, error) {
	d := day.Format("2006-01-02")
	u := fmt.Sprintf("%s/calendar/earnings?from=%s&to=%s&token=%s", s.BaseURL, d, d, url.QueryEscape(s.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finnhub calendar %s: %w", d, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("finnhub calendar %s: status %d, body: %s", d, resp.StatusCode, string(body))
	}

	var cal finnhubCalendar
	if err := json.NewDecoder(resp.Body).Decode(&cal); err != nil {
		return nil, fmt.Errorf("finnhub calendar %s: decode: %w", d, err)
	}
	events := make([]model.EarningsEvent, 0, len(cal.EarningsCalendar))
	for _, e := range cal.EarningsCalendar {
		date, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			log.Warnf("finnhub: skipping %s with bad date %q", e.Symbol, e.Date)
			continue
		}
		events = append(events, model.EarningsEvent{
			Symbol:  e.Symbol,
			Date:    date,
			Session: ParseSession(e.Hour),
		})
	}
	return events, nil
}

func (s *FinnhubSource) pause(ctx context.Context) error {
	if s.MaxDelay <= 0 {
		return nil
	}
	delay := s.MinDelay
	if span := s.MaxDelay - s.MinDelay; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
