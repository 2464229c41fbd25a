// Package store persists harvest run history so past outcomes can be
// reviewed after the console output is gone.
package store

import (
	"context"
	"time"

	"github.com/sells-group/report-harvester/internal/model"
)

// Run is one recorded harvest run.
type Run struct {
	ID          string
	StartedAt   time.Time
	CompletedAt time.Time
	Companies   int
	Satisfied   int
	Unsatisfied int
}

// CompanyOutcome is the recorded terminal state of one company in a run.
type CompanyOutcome struct {
	RunID    string
	Symbol   string
	Name     string
	Outcome  model.Outcome
	Messages []string
}

// Store records run history.
type Store interface {
	Migrate(ctx context.Context) error
	CreateRun(ctx context.Context) (string, error)
	RecordOutcome(ctx context.Context, outcome CompanyOutcome) error
	CompleteRun(ctx context.Context, runID string, companies, satisfied, unsatisfied int) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
