package recorder

import (
	"time"

	"github.com/google/uuid"

	"EarningsScreener/internal/model"
)

// Failure records a symbol whose screen errored.
type Failure struct {
	Symbol  string
	Kind    string
	Message string
}

// ScreenRun holds everything produced by one batch screen.
type ScreenRun struct {
	ID          string
	SessionDate time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	Provider    string
	// Results lists every computed symbol in report order, rejected ones included.
	Results  []model.ResultRow
	Failures []Failure
	Filtered []string
}

// NewScreenRun starts a run for the given session date with a fresh id.
func NewScreenRun(sessionDate time.Time, provider string) *ScreenRun {
	return &ScreenRun{
		ID:          uuid.New().String(),
		SessionDate: sessionDate,
		StartedAt:   time.Now(),
		Provider:    provider,
	}
}

// Recorder persists screening history.
type Recorder interface {
	RecordRun(run *ScreenRun) error
	// Recommendations returns the Go and Consider rows of the latest run for date.
	Recommendations(date time.Time) ([]model.ResultRow, error)
	Close() error
}
