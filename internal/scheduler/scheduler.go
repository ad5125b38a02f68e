package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"EarningsScreener/internal/calendar"
	"EarningsScreener/internal/model"
	"EarningsScreener/internal/notifier"
	"EarningsScreener/internal/recorder"
	"EarningsScreener/internal/strategy"
)

// ErrRunInProgress is returned when a screen is requested while another is running.
var ErrRunInProgress = errors.New("a screen is already running")

// Scheduler runs the daily earnings screen on a cron schedule and answers chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Calendar  calendar.Source
	Screener  *strategy.Screener
	Engine    strategy.Recommender
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	ExportDir string
	Provider  string
	Now       func() time.Time
	Ctx       context.Context

	running sync.Mutex
}

// NewScheduler creates a new Scheduler. A nil notifier disables delivery.
func NewScheduler(ctx context.Context, src calendar.Source, screener *strategy.Screener, n notifier.Notifier, rec recorder.Recorder) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Calendar: src,
		Screener: screener,
		Engine:   screener.Engine,
		Notifier: n,
		Recorder: rec,
		Now:      time.Now,
		Ctx:      ctx,
	}
}

// Register adds the daily screen task.
func (s *Scheduler) Register(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info("scheduler stopped")
}

func (s *Scheduler) dailyTask() {
	log.Info("running daily screen")
	if _, err := s.RunScreen(s.Ctx, s.Now()); err != nil {
		log.Errorf("daily screen: %v", err)
	}
}

// RunScreen screens the session for today: calendar, batch screen, persistence, CSV export
// and notification. Persistence and delivery failures are logged; the run is still returned.
func (s *Scheduler) RunScreen(ctx context.Context, today time.Time) (*recorder.ScreenRun, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	events, err := calendar.Upcoming(ctx, s.Calendar, today)
	if err != nil {
		s.notifyFailure(ctx, today, err)
		return nil, err
	}
	log.Infof("%d symbols scheduled for %s", len(events), today.Format("2006-01-02"))

	run := recorder.NewScreenRun(today, s.Provider)
	report, err := s.Screener.Screen(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("screen: %w", err)
	}
	fillRun(run, report)
	run.FinishedAt = time.Now()

	if err := s.Recorder.RecordRun(run); err != nil {
		log.Errorf("record run: %v", err)
	}
	if s.ExportDir != "" {
		if path, err := recorder.ExportCSV(s.ExportDir, today, ratedRows(report)); err != nil {
			log.Errorf("export csv: %v", err)
		} else {
			log.Infof("recommendations exported to %s", path)
		}
	}

	if s.Notifier != nil {
		msg := notifier.FormatReport(BuildReport(today, report))
		if err := s.Notifier.Notify(ctx, msg); err != nil {
			log.Errorf("send report: %v", err)
		}
	}
	return run, nil
}

func (s *Scheduler) notifyFailure(ctx context.Context, today time.Time, cause error) {
	if s.Notifier == nil {
		return
	}
	msg := notifier.Message{
		Subject: fmt.Sprintf("Earnings Recommendations - %s (Failed)", today.Format("2006-01-02")),
		Text:    cause.Error(),
		HTML:    "<p>" + html.EscapeString(cause.Error()) + "</p>",
	}
	if err := s.Notifier.Notify(ctx, msg); err != nil {
		log.Errorf("send failure notice: %v", err)
	}
}

// fillRun copies a batch report into run in report order.
func fillRun(run *recorder.ScreenRun, report *strategy.BatchReport) {
	for _, res := range report.Rated {
		run.Results = append(run.Results, res.Recommendation.Row(res.Event))
	}
	for _, res := range report.Rejected {
		run.Results = append(run.Results, res.Recommendation.Row(res.Event))
	}
	for _, res := range report.Failures {
		run.Failures = append(run.Failures, recorder.Failure{
			Symbol:  res.Event.Symbol,
			Kind:    strategy.ErrorKind(res.Err),
			Message: res.Err.Error(),
		})
	}
	for _, evt := range report.Filtered {
		run.Filtered = append(run.Filtered, evt.Symbol)
	}
}

func ratedRows(report *strategy.BatchReport) []model.ResultRow {
	rows := make([]model.ResultRow, 0, len(report.Rated))
	for _, res := range report.Rated {
		rows = append(rows, res.Recommendation.Row(res.Event))
	}
	return rows
}

// BuildReport groups a batch report for the formatter.
func BuildReport(today time.Time, report *strategy.BatchReport) notifier.Report {
	r := notifier.Report{Date: today, Rows: ratedRows(report)}
	for _, res := range report.Failures {
		if strategy.IsExpirationShortfall(res.Err) {
			r.Shortfall = append(r.Shortfall, res.Event.Symbol)
		} else {
			r.Errors = append(r.Errors, res.Err.Error())
		}
	}
	for _, evt := range report.Filtered {
		r.Filtered = append(r.Filtered, evt.Symbol)
	}
	return r
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch strings.ToLower(fields[0]) {
	case "/today":
		return s.todayReply()
	case "/rec":
		if len(fields) < 2 {
			return "usage: /rec SYMBOL"
		}
		symbol := strings.ToUpper(fields[1])
		rec, err := s.Engine.Compute(ctx, symbol)
		if err != nil {
			return "❌ " + html.EscapeString(err.Error())
		}
		return notifier.FormatRecommendation(rec)
	case "/screen":
		go func() {
			if _, err := s.RunScreen(s.Ctx, s.Now()); err != nil {
				log.Errorf("manual screen: %v", err)
			}
		}()
		return "screen started"
	default:
		return "Available commands:\n• /today - recorded recommendations for today\n• /rec SYMBOL - compute one symbol now\n• /screen - run today's screen"
	}
}

func (s *Scheduler) todayReply() string {
	today := s.Now()
	rows, err := s.Recorder.Recommendations(today)
	if err != nil {
		log.Errorf("load recommendations: %v", err)
		return "❌ load recommendations: " + html.EscapeString(err.Error())
	}
	if len(rows) == 0 {
		return fmt.Sprintf("No recommendations recorded for %s", today.Format("2006-01-02"))
	}
	return "<b>" + html.EscapeString(notifier.Summary(rows)) + "</b>\n<pre>" + html.EscapeString(notifier.FormatRows(rows)) + "</pre>"
}
