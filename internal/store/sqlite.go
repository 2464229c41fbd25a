package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/report-harvester/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	companies    INTEGER NOT NULL DEFAULT 0,
	satisfied    INTEGER NOT NULL DEFAULT 0,
	unsatisfied  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS run_companies (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	symbol   TEXT NOT NULL,
	name     TEXT NOT NULL DEFAULT '',
	outcome  TEXT NOT NULL,
	messages TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, symbol)
);

CREATE INDEX IF NOT EXISTS idx_run_companies_run_id ON run_companies(run_id);
CREATE INDEX IF NOT EXISTS idx_run_companies_symbol ON run_companies(symbol);
`

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run row and returns its id.
func (s *SQLiteStore) CreateRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert run")
	}
	return id, nil
}

// RecordOutcome stores one company's terminal state for a run.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, outcome CompanyOutcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_companies (run_id, symbol, name, outcome, messages) VALUES (?, ?, ?, ?, ?)`,
		outcome.RunID, outcome.Symbol, outcome.Name, string(outcome.Outcome), strings.Join(outcome.Messages, "\n"),
	)
	return eris.Wrap(err, "sqlite: record outcome")
}

// CompleteRun finalizes a run row with its tallies.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, companies, satisfied, unsatisfied int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET completed_at = ?, companies = ?, satisfied = ?, unsatisfied = ? WHERE id = ?`,
		time.Now().UTC(), companies, satisfied, unsatisfied, runID,
	)
	return eris.Wrap(err, "sqlite: complete run")
}

// RecentRuns returns the most recent runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, completed_at, companies, satisfied, unsatisfied
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		// completed_at is NULL until CompleteRun; fall back to started_at
		// (COALESCE in SQL loses the declared type the driver needs).
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.StartedAt, &completedAt, &r.Companies, &r.Satisfied, &r.Unsatisfied); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.CompletedAt = r.StartedAt
		if completedAt.Valid {
			r.CompletedAt = completedAt.Time
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

// Outcomes returns the per-company outcomes recorded for a run.
func (s *SQLiteStore) Outcomes(ctx context.Context, runID string) ([]CompanyOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, symbol, name, outcome, messages FROM run_companies WHERE run_id = ? ORDER BY symbol`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query outcomes")
	}
	defer rows.Close() //nolint:errcheck

	var outcomes []CompanyOutcome
	for rows.Next() {
		var o CompanyOutcome
		var msgs, outcome string
		if err := rows.Scan(&o.RunID, &o.Symbol, &o.Name, &outcome, &msgs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		o.Outcome = model.Outcome(outcome)
		if msgs != "" {
			o.Messages = strings.Split(msgs, "\n")
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, eris.Wrap(rows.Err(), "sqlite: iterate outcomes")
}
