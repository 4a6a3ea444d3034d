package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/upb/billbuddy/app"
	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/routes"
	"go.uber.org/zap"
)

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) newAskCmd() *cobra.Command {
	var (
		maxResults int
		sessionID  string
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask for a plan recommendation and print the JSON answer",
		Example: `  billbuddy ask "cheapest NBN plan for a family of four"
  billbuddy ask -k 2 "mobile plan with 5G"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &models.QueryRequest{
				Query:     strings.Join(args, " "),
				SessionID: sessionID,
			}
			if cmd.Flags().Changed("max-results") {
				req.MaxResults = &maxResults
			}
			return c.ask(cmd, req)
		},
	}

	cmd.Flags().IntVarP(&maxResults, "max-results", "k", models.DefaultMaxResults, "number of plans to retrieve")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to log the query under")
	return cmd
}

func (c *cli) newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Seed the plan catalog and embed every plan without an embedding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.index(cmd)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	deps, err := app.NewDependencies(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			c.logger.Error("failed to close dependencies", zap.Error(err))
		}
	}()

	if c.cfg.RAG.SeedOnStartup {
		if _, err := deps.SeedCatalog(ctx); err != nil {
			return fmt.Errorf("failed to seed plan catalog: %w", err)
		}
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(c.cfg.Server.Host, strconv.Itoa(c.cfg.Server.Port)),
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  c.cfg.Server.ReadTimeout,
		WriteTimeout: c.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("billbuddy listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", c.cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	c.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (c *cli) ask(cmd *cobra.Command, req *models.QueryRequest) error {
	ctx := cmd.Context()

	deps, err := app.NewDependencies(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	if err := c.ensureSeeded(ctx, deps); err != nil {
		return err
	}

	resp, err := deps.Query.Answer(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func (c *cli) index(cmd *cobra.Command) error {
	ctx := cmd.Context()

	deps, err := app.NewDependencies(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	seeded, err := deps.SeedCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed plan catalog: %w", err)
	}
	report, err := deps.Catalog.ReindexMissing(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "seeded: %d saved, %d unchanged, %d indexed, %d failed\n",
		seeded.Saved, seeded.Unchanged, seeded.Indexed, seeded.Failed)
	fmt.Fprintf(out, "reindexed: %d indexed, %d already indexed\n", report.Indexed, report.Skipped)
	if len(report.Failed) > 0 {
		fmt.Fprintf(out, "failed: %s\n", strings.Join(report.Failed, ", "))
		return fmt.Errorf("%d plans could not be indexed", len(report.Failed))
	}
	return nil
}

// ensureSeeded loads the seed catalog into an empty store
func (c *cli) ensureSeeded(ctx context.Context, deps *app.Dependencies) error {
	n, err := deps.Plans.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := deps.SeedCatalog(ctx); err != nil {
		return fmt.Errorf("failed to seed plan catalog: %w", err)
	}
	return nil
}
