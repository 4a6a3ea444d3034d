package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/upb/billbuddy/config"
	"github.com/upb/billbuddy/internal/observability"
	"go.uber.org/zap"
)

// cli carries the state shared by every subcommand
type cli struct {
	verbose    bool
	loadConfig func(ctx context.Context) (*config.Config, error)

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(loadConfig func(ctx context.Context) (*config.Config, error)) *cobra.Command {
	c := &cli{loadConfig: loadConfig}

	root := &cobra.Command{
		Use:   "billbuddy",
		Short: "BillBuddy - utility plan recommendations",
		Long: `BillBuddy answers questions about internet, mobile and energy plans.

It embeds the plan catalog, retrieves the plans closest to a question and
asks a chat model for a structured recommendation citing those plans.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if c.verbose {
				cfg.Observability.LogLevel = "debug"
			}

			logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.cfg = cfg
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		c.newServeCmd(),
		c.newAskCmd(),
		c.newIndexCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.New).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
