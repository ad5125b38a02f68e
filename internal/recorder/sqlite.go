package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"EarningsScreener/internal/model"
)

const dateLayout = "2006-01-02"

// SQLiteRecorder persists screening runs to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read while a screen is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Infof("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS screen_runs (
			id           TEXT PRIMARY KEY,
			session_date TEXT NOT NULL,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER NOT NULL,
			provider     TEXT,
			screened     INTEGER,
			rated        INTEGER,
			failed       INTEGER,
			filtered     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_date ON screen_runs(session_date, finished_at)`,

		`CREATE TABLE IF NOT EXISTS recommendations (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        TEXT NOT NULL REFERENCES screen_runs(id),
			position      INTEGER NOT NULL,
			symbol        TEXT NOT NULL,
			company       TEXT,
			rating        TEXT NOT NULL,
			avg_volume    INTEGER,
			iv30_rv30     INTEGER,
			expected_move TEXT,
			ts_slope_0_45 REAL,
			rv30          REAL,
			iv30          REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reco_run ON recommendations(run_id, position)`,

		`CREATE TABLE IF NOT EXISTS screen_failures (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id  TEXT NOT NULL REFERENCES screen_runs(id),
			symbol  TEXT NOT NULL,
			kind    TEXT,
			message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_run ON screen_failures(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(run *ScreenRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	rated := 0
	for _, row := range run.Results {
		if row.Rating != model.RatingReject {
			rated++
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO screen_runs
		(id, session_date, started_at, finished_at, provider, screened, rated, failed, filtered)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID, run.SessionDate.Format(dateLayout), run.StartedAt.Unix(), run.FinishedAt.Unix(),
		run.Provider, len(run.Results)+len(run.Failures)+len(run.Filtered),
		rated, len(run.Failures), len(run.Filtered),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, row := range run.Results {
		if _, err := tx.Exec(`INSERT INTO recommendations
			(run_id, position, symbol, company, rating, avg_volume, iv30_rv30, expected_move, ts_slope_0_45, rv30, iv30)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			run.ID, i, row.Symbol, row.Company, string(row.Rating),
			row.AvgVolume, row.IV30RV30, nullString(row.ExpectedMove),
			nullFloat(row.TSSlope045), nullFloat(row.RV30), row.IV30,
		); err != nil {
			return fmt.Errorf("insert recommendation %s: %w", row.Symbol, err)
		}
	}

	for _, f := range run.Failures {
		if _, err := tx.Exec(`INSERT INTO screen_failures (run_id, symbol, kind, message) VALUES (?,?,?,?)`,
			run.ID, f.Symbol, f.Kind, f.Message,
		); err != nil {
			return fmt.Errorf("insert failure %s: %w", f.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) Recommendations(date time.Time) ([]model.ResultRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT symbol, company, rating, avg_volume, iv30_rv30, expected_move, ts_slope_0_45, rv30, iv30
		FROM recommendations
		WHERE run_id = (SELECT id FROM screen_runs WHERE session_date = ? ORDER BY finished_at DESC, rowid DESC LIMIT 1)
		  AND rating != ?
		ORDER BY position`,
		date.Format(dateLayout), string(model.RatingReject))
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	var out []model.ResultRow
	for rows.Next() {
		var (
			row    model.ResultRow
			rating string
			move   sql.NullString
			slope  sql.NullFloat64
			rv     sql.NullFloat64
		)
		if err := rows.Scan(&row.Symbol, &row.Company, &rating, &row.AvgVolume, &row.IV30RV30,
			&move, &slope, &rv, &row.IV30); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		row.Rating = model.Rating(rating)
		if move.Valid {
			row.ExpectedMove = &move.String
		}
		if slope.Valid {
			row.TSSlope045 = &slope.Float64
		}
		if rv.Valid {
			row.RV30 = &rv.Float64
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info("closing sqlite recorder")
	return r.db.Close()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
