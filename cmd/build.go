package main

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/hospmon/internal/casefeed"
	"github.com/sells-group/hospmon/internal/config"
	"github.com/sells-group/hospmon/internal/export"
	"github.com/sells-group/hospmon/internal/fetcher"
	"github.com/sells-group/hospmon/internal/hospdir"
	"github.com/sells-group/hospmon/internal/monitor"
	"github.com/sells-group/hospmon/internal/monitoring"
	"github.com/sells-group/hospmon/internal/store"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build today's hospital table",
	Long:  "Downloads the case feed and hospital directory, runs the pipeline, writes the dated artifact and records the run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("build"); err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		ifChanged, _ := cmd.Flags().GetBool("if-changed")
		dateFlag, _ := cmd.Flags().GetString("date")

		today := time.Now().UTC().Truncate(24 * time.Hour)
		if dateFlag != "" {
			d, err := monitor.ParseReportDate(dateFlag)
			if err != nil {
				return eris.Wrap(err, "build: --date")
			}
			today = d
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Feed.UserAgent,
			Timeout:    time.Duration(cfg.Feed.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Feed.MaxRetries,
		})

		out, err := runBuild(ctx, cfg, st, f, buildOptions{
			Today:     today,
			Force:     force,
			IfChanged: ifChanged,
		})
		if err != nil {
			return err
		}
		if out.Skipped != "" {
			zap.L().Info("build skipped", zap.String("reason", out.Skipped))
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().Bool("force", false, "rebuild even if today's artifact exists")
	buildCmd.Flags().Bool("if-changed", false, "skip when the upstream feed ETag matches the last successful run")
	buildCmd.Flags().String("date", "", "report day used to name the artifact (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(buildCmd)
}

type buildOptions struct {
	Today     time.Time
	Force     bool
	IfChanged bool
}

type buildOutcome struct {
	RunID    string
	Artifact string
	FeedETag string
	// Skipped holds the reason no build happened; empty when one did.
	Skipped string
	Summary monitor.Summary
	Alerts  []monitoring.Alert
}

// runBuild executes one build. st may be nil, in which case nothing is recorded
// and no alerts are evaluated.
func runBuild(ctx context.Context, c *config.Config, st store.Store, f fetcher.Fetcher, opts buildOptions) (*buildOutcome, error) {
	log := zap.L().With(zap.String("component", "cmd.build"))

	format, err := export.ParseFormat(c.Output.Format)
	if err != nil {
		return nil, err
	}
	path := export.ArtifactPath(c.Output.Dir, c.Output.Prefix, opts.Today, format)
	out := &buildOutcome{Artifact: path}

	if !opts.Force {
		exists, err := export.Exists(path)
		if err != nil {
			return nil, err
		}
		if exists {
			out.Skipped = "artifact exists"
			log.Info("artifact already built", zap.String("path", path))
			return out, nil
		}
	}

	if opts.IfChanged && st != nil && fetcher.IsRemote(c.Feed.URL) {
		unchanged, err := feedUnchanged(ctx, st, f, c.Feed.URL)
		if err != nil {
			return nil, err
		}
		if unchanged {
			out.Skipped = "feed unchanged"
			return out, nil
		}
	}

	var runID string
	if st != nil {
		run, err := st.StartRun(ctx)
		if err != nil {
			return nil, err
		}
		runID = run.ID
		out.RunID = runID
		log = log.With(zap.String("run_id", runID))
	}

	buildErr := build(ctx, c, st, f, path, format, out)
	if buildErr != nil {
		log.Error("build failed", zap.Error(buildErr))
		if st != nil {
			if err := st.FailRun(ctx, runID, buildErr.Error()); err != nil {
				log.Error("failed to record run failure", zap.Error(err))
			}
		}
	} else {
		log.Info("build complete",
			zap.String("artifact", path),
			zap.Int("rows", out.Summary.Rows),
			zap.Int("hospitals", out.Summary.Hospitals),
		)
	}

	if st != nil {
		out.Alerts = checkRun(ctx, c.Monitoring, st, runID)
	}
	return out, buildErr
}

func build(ctx context.Context, c *config.Config, st store.Store, f fetcher.Fetcher, path string, format export.Format, out *buildOutcome) error {
	var (
		records []monitor.CaseRecord
		dir     *hospdir.Directory
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, etag, err := openFeed(gctx, f, c.Feed.URL)
		if err != nil {
			return err
		}
		defer body.Close() //nolint:errcheck
		out.FeedETag = etag

		records, err = casefeed.Read(gctx, body, casefeed.Options{})
		return eris.Wrap(err, "build: read feed")
	})
	g.Go(func() error {
		var err error
		dir, err = hospdir.Load(gctx, f, c.Directory.Path, c.Directory.Sheet)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	opts := monitor.DefaultOptions()
	opts.PendingOffsetDays = c.Pipeline.PendingOffsetDays
	opts.FillThroughEnd = c.Pipeline.FillThroughEnd
	opts.DropCategories = c.Output.DropCategories

	res, err := monitor.Run(records, dir.Hospitals(), opts)
	if err != nil {
		return err
	}
	out.Summary = res.Summary

	if err := export.Write(path, format, res); err != nil {
		return err
	}

	if st == nil {
		return nil
	}
	if _, err := st.SaveSnapshot(ctx, out.RunID, res.Rows); err != nil {
		return err
	}
	return st.CompleteRun(ctx, out.RunID, store.RunResult{
		FeedETag:     out.FeedETag,
		ArtifactPath: path,
		Summary:      res.Summary,
	})
}

// openFeed opens the case feed. Remote feeds also report their ETag.
func openFeed(ctx context.Context, f fetcher.Fetcher, src string) (io.ReadCloser, string, error) {
	if !fetcher.IsRemote(src) {
		rc, err := fetcher.Open(ctx, f, src)
		return rc, "", err
	}
	body, etag, _, err := f.DownloadIfChanged(ctx, src, "")
	if err != nil {
		return nil, "", eris.Wrap(err, "build: download feed")
	}
	return body, etag, nil
}

// feedUnchanged compares the upstream ETag with the one recorded by the last
// successful run.
func feedUnchanged(ctx context.Context, st store.Store, f fetcher.Fetcher, url string) (bool, error) {
	last, err := st.LastSuccess(ctx)
	if err != nil {
		return false, err
	}
	if last == nil || last.FeedETag == "" {
		return false, nil
	}
	etag, err := f.HeadETag(ctx, url)
	if err != nil {
		return false, eris.Wrap(err, "build: check feed etag")
	}
	return etag == last.FeedETag, nil
}

// checkRun evaluates alert rules against the run just recorded and delivers any
// that fire.
func checkRun(ctx context.Context, mc config.MonitoringConfig, st store.Store, runID string) []monitoring.Alert {
	snap, err := monitoring.NewCollector(st).Collect(ctx, runID)
	if err != nil {
		zap.L().Warn("monitoring: skipped run check", zap.Error(err))
		return nil
	}
	alerter := monitoring.NewAlerter(mc)
	alerts := alerter.Evaluate(snap)
	if len(alerts) > 0 {
		alerter.SendAlerts(ctx, alerts)
	}
	return alerts
}
