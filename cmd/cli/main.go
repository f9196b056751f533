package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/occledger/internal/infrastructure/config"
	"github.com/iho/occledger/internal/infrastructure/logger"
)

// options are the flags shared by every command.
type options struct {
	cfg     *config.Config
	baseURL string
	timeout time.Duration
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Output: os.Stderr})
	ctx := log.WithContext(context.Background())

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &options{cfg: cfg}

	rootCmd := &cobra.Command{
		Use:           "occledger-cli",
		Short:         "OCC ledger CLI tool",
		Long:          `A command line interface for seeding, reading and moving funds in the OCC ledger.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection URL")
	rootCmd.PersistentFlags().StringVar(&opts.cfg.DatabaseIsolation, "isolation", cfg.DatabaseIsolation, "Transaction isolation level")
	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the ledger API (load command)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		seedCmd(opts),
		balanceCmd(opts),
		transferCmd(opts),
		ledgerCmd(opts),
		migrateCmd(opts),
		loadCmd(opts),
	)

	return rootCmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
