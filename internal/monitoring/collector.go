package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hospmon/internal/store"
)

// historyLimit bounds how many runs are read to build a snapshot.
const historyLimit = 50

// RunSnapshot is the slice of run history the alerter inspects.
type RunSnapshot struct {
	// Run is the run being evaluated; nil for a periodic freshness check.
	Run *store.Run `json:"run,omitempty"`
	// Previous is the latest successful run that started before Run.
	Previous *store.Run `json:"previous,omitempty"`
	// LastSuccess is the latest successful run overall.
	LastSuccess *store.Run `json:"last_success,omitempty"`
	// ConsecutiveFailures counts failed runs since the last success.
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CollectedAt         time.Time `json:"collected_at"`
}

// RunLister is the part of store.Store the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]store.Run, error)
}

// Collector builds RunSnapshots from the run log.
type Collector struct {
	runs RunLister
}

// NewCollector creates a new snapshot collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs}
}

// Collect reads recent runs, newest first, and locates runID among them.
// An empty runID collects history only.
func (c *Collector) Collect(ctx context.Context, runID string) (*RunSnapshot, error) {
	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: historyLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap := &RunSnapshot{CollectedAt: time.Now().UTC()}

	countingFailures := true
	for i := range runs {
		r := &runs[i]
		switch r.Status {
		case store.RunStatusComplete:
			countingFailures = false
			if snap.LastSuccess == nil {
				snap.LastSuccess = r
			}
			if snap.Run != nil && snap.Previous == nil && r.ID != snap.Run.ID {
				snap.Previous = r
			}
		case store.RunStatusFailed:
			if countingFailures {
				snap.ConsecutiveFailures++
			}
		}
		if runID != "" && r.ID == runID {
			snap.Run = r
		}
	}

	if runID != "" && snap.Run == nil {
		return nil, eris.Errorf("monitoring: run %s not in recent history", runID)
	}
	return snap, nil
}
