// Package store persists the hospmon run log and the published hospital
// table. Postgres is the production backend; SQLite serves local runs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hospmon/internal/monitor"
)

// RunStatus is the lifecycle state of a build run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one entry of the run log.
type Run struct {
	ID           string     `json:"id"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FeedETag     string     `json:"feed_etag,omitempty"`
	ArtifactPath string     `json:"artifact_path,omitempty"`
	RowCount     int        `json:"rows"`
	NewConfirm   int64      `json:"new_confirm"`
	NewDeath     int64      `json:"new_death"`
	NewRecover   int64      `json:"new_recover"`
	Error        string     `json:"error,omitempty"`
}

// RunResult is recorded by CompleteRun.
type RunResult struct {
	FeedETag     string
	ArtifactPath string
	Summary      monitor.Summary
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
}

// RegionTotal is the per-region rollup recorded with each snapshot.
type RegionTotal struct {
	RunID      string `json:"run_id"`
	TotalArea  string `json:"total_area"`
	Hospitals  int    `json:"hospitals"`
	NewConfirm int64  `json:"new_confirm"`
	NewDeath   int64  `json:"new_death"`
	NewRecover int64  `json:"new_recover"`
}

// Store defines the persistence interface for build runs and their output.
type Store interface {
	// Runs
	StartRun(ctx context.Context) (*Run, error)
	CompleteRun(ctx context.Context, runID string, result RunResult) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	LastSuccess(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Published table
	SaveSnapshot(ctx context.Context, runID string, rows []monitor.FinalRow) (int64, error)
	Dates(ctx context.Context) ([]time.Time, error)
	Hospitals(ctx context.Context, date time.Time) ([]monitor.FinalRow, error)
	RegionTotals(ctx context.Context, runID string) ([]RegionTotal, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// Open connects to the backend named by driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	if dsn == "" {
		return nil, eris.Errorf("store: empty dsn for driver %q", driver)
	}
	switch driver {
	case "postgres":
		s, err := NewPostgres(ctx, dsn, poolCfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
