package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hospmon/internal/config"
	"github.com/sells-group/hospmon/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hospmon",
	Short: "Hospital-level epidemic monitoring dataset builder",
	Long:  "Turns the daily line-list feed into one row per report date and hospital, back-fills quiet and unlisted hospitals, and publishes the table.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore connects to the configured store. It returns nil when no driver is set.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if c.Store.Driver == "" {
		return nil, nil
	}
	return store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: c.Store.MaxConns,
		MinConns: c.Store.MinConns,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
