package model

import "time"

// Session is when an earnings announcement happens relative to market hours.
type Session string

const (
	SessionAfterClose  Session = "amc"
	SessionBeforeOpen  Session = "bmo"
	SessionDuringHours Session = "dmh"
)

// EarningsEvent is one calendar entry.
type EarningsEvent struct {
	Symbol  string
	Company string
	Date    time.Time
	Session Session
}
