package calendar

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"EarningsScreener/internal/calculator"
	"EarningsScreener/internal/model"
)

// csvEarningsRow is one line of an exported earnings calendar.
type csvEarningsRow struct {
	Ticker           string `csv:"ticker"`
	Company          string `csv:"company_name"`
	AnnouncementDate string `csv:"announcement_date"`
	AnnouncementTime string `csv:"announcement_time"`
}

// CSVSource reads events from a calendar CSV with ticker, announcement_date (YYYY-MM-DD)
// and announcement_time (amc|bmo|dmh) columns.
type CSVSource struct {
	Path string
}

func NewCSVSource(path string) *CSVSource { return &CSVSource{Path: path} }

func (s *CSVSource) Name() string { return "csv" }

func (s *CSVSource) Events(_ context.Context, from, to time.Time) ([]model.EarningsEvent, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open calendar csv: %w", err)
	}
	defer f.Close()

	var rows []*csvEarningsRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse calendar csv: %w", err)
	}

	lo, hi := calculator.CivilDate(from), calculator.CivilDate(to)
	var events []model.EarningsEvent
	for _, r := range rows {
		date, err := time.Parse("2006-01-02", r.AnnouncementDate)
		if err != nil {
			log.Warnf("calendar csv: skipping %s with bad date %q", r.Ticker, r.AnnouncementDate)
			continue
		}
		if date.Before(lo) || date.After(hi) {
			continue
		}
		events = append(events, model.EarningsEvent{
			Symbol:  r.Ticker,
			Company: r.Company,
			Date:    date,
			Session: ParseSession(r.AnnouncementTime),
		})
	}
	return events, nil
}
