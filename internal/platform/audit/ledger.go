package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"otpreport/internal/engine/otpstats"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_runs (
	id TEXT PRIMARY KEY,
	job TEXT NOT NULL,
	status TEXT NOT NULL,
	range_start TEXT,
	range_end TEXT,
	rows_written INTEGER DEFAULT 0,
	error TEXT,
	started_at INTEGER NOT NULL,
	finished_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_job_runs_job ON job_runs(job, status);
`

type Run struct {
	ID         string
	Job        string
	Status     string
	RangeStart string
	RangeEnd   string
	Rows       int
	Error      string
	StartedAt  int64
	FinishedAt int64
}

// Ledger records every job run in a local SQLite file. A nil *Ledger is
// valid and records nothing, so jobs never need to check whether auditing is
// enabled.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Open creates the database file and schema when needed. An empty path
// returns a nil ledger.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	l := NewLedger(db)
	if err := l.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Migrate() error {
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Start records a running job. Ledger failures are logged, never returned:
// a broken ledger must not stop a report from going out.
func (l *Ledger) Start(job string, rng *otpstats.DateRange) *Run {
	run := &Run{
		ID:        "run_" + uuid.New().String(),
		Job:       job,
		Status:    StatusRunning,
		StartedAt: time.Now().Unix(),
	}
	if rng != nil {
		run.RangeStart = rng.Start.Format(otpstats.DateLayout)
		run.RangeEnd = rng.End.Format(otpstats.DateLayout)
	}
	if l == nil {
		return run
	}

	_, err := l.db.Exec(`
		INSERT INTO job_runs (id, job, status, range_start, range_end, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Job, run.Status, run.RangeStart, run.RangeEnd, run.StartedAt)
	if err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to record job start")
	}
	return run
}

func (l *Ledger) Finish(run *Run, rows int, runErr error) {
	run.Rows = rows
	run.FinishedAt = time.Now().Unix()
	run.Status = StatusSucceeded
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	}
	if l == nil {
		return
	}

	_, err := l.db.Exec(`
		UPDATE job_runs SET status = ?, rows_written = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, run.Status, run.Rows, run.Error, run.FinishedAt, run.ID)
	if err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to record job result")
	}
}

// OverlappingSuccess returns earlier successful runs of job whose range
// intersects rng, most recent first.
func (l *Ledger) OverlappingSuccess(job string, rng otpstats.DateRange) ([]Run, error) {
	if l == nil {
		return nil, nil
	}

	rows, err := l.db.Query(`
		SELECT id, job, status, range_start, range_end, rows_written, started_at, finished_at
		FROM job_runs
		WHERE job = ? AND status = ? AND range_start <= ? AND range_end >= ?
		ORDER BY started_at DESC
	`, job, StatusSucceeded, rng.End.Format(otpstats.DateLayout), rng.Start.Format(otpstats.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Job, &r.Status, &r.RangeStart, &r.RangeEnd, &r.Rows, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		r.FinishedAt = finished.Int64
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
