package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oracleplane/oracleplane/internal/config"
	"github.com/oracleplane/oracleplane/internal/state"
)

var rootCmd = &cobra.Command{
	Use:   "oracleplane",
	Short: "Oracleplane deploys Oracle schema changes between two databases.",
	Long: `Oracleplane computes the DDL changes required to bring a target Oracle
database into alignment with a source database, applies them transactionally
per object, and can roll back a prior deployment in reverse dependency order.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the resources every subcommand needs: resolved
// configuration, a structured logger, and the bookkeeping store.
type app struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	store  *state.Store
}

// openApp loads configuration, builds the logger, and opens the
// bookkeeping store — the per-invocation setup every subcommand shares.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		printConfigNotFound()
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	store, err := state.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening bookkeeping store %s: %w", cfg.DatabaseURL, err)
	}

	return &app{cfg: cfg, logger: logger, store: store}, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
