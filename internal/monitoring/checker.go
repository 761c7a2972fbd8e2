package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/hospmon/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// noSuccess stands in for the last successful run id while none exists.
const noSuccess = "-"

// Checker watches the run log for a published table that has gone stale.
//
// A stale table is reported once. The next report is sent only after a newer
// successful build has gone stale in turn.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	every     time.Duration
	staleFor  int

	// reported is the last-success id of the most recent stale report.
	reported string
}

// NewChecker returns a Checker polling every cfg.CheckIntervalSecs seconds.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	every := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if every <= 0 {
		every = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		every:     every,
		staleFor:  cfg.MaxStaleHours,
	}
}

// Run polls until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("watching table freshness",
		zap.Duration("every", c.every),
		zap.Int("max_stale_hours", c.staleFor),
	)

	tick := time.NewTicker(c.every)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("freshness watch stopped")
			return
		case <-tick.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, "")
	if err != nil {
		log.Error("monitoring: read run log", zap.Error(err))
		return
	}

	lastID := noSuccess
	if snap.LastSuccess != nil {
		lastID = snap.LastSuccess.ID
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		c.reported = ""
		return
	}
	if c.reported == lastID {
		log.Debug("monitoring: stale table already reported", zap.String("last_success", lastID))
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	if sent > 0 {
		c.reported = lastID
	}
	log.Warn("monitoring: published table is stale",
		zap.String("last_success", lastID),
		zap.Int("consecutive_failures", snap.ConsecutiveFailures),
		zap.Int("alerts_sent", sent),
	)
}
