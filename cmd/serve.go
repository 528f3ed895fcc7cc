// File: cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/browser"
	"github.com/xkilldash9x/webpilot/internal/hitl"
	"github.com/xkilldash9x/webpilot/internal/observability"
	"github.com/xkilldash9x/webpilot/internal/oracle"
	"github.com/xkilldash9x/webpilot/internal/registry"
	"github.com/xkilldash9x/webpilot/internal/server"
	"github.com/xkilldash9x/webpilot/internal/solver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job API server.",
	Long: `Starts the HTTP server that accepts search jobs, drives a headless
browser per job under LLM control, and streams progress as server-sent
events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	oracleClient, err := oracle.NewClient(ctx, cfg.Oracle, logger)
	if err != nil {
		return fmt.Errorf("building oracle client: %w", err)
	}

	surfaces := browser.NewManager(cfg.Browser, logger)
	locator := browser.NewLocator(cfg.Browser.MaxCandidates, logger)
	broker := hitl.NewBroker(cfg.Agent.InputTimeout, logger)

	var challengeSolver schemas.ChallengeSolver
	if cfg.Solver.Enabled {
		s, err := solver.New(cfg.Solver, logger)
		if err != nil {
			return fmt.Errorf("building challenge solver: %w", err)
		}
		challengeSolver = s
		logger.Info("challenge solving enabled")
	}

	runner := agent.NewRunner(surfaces, oracleClient, broker, locator, challengeSolver, cfg.Agent, logger)
	reg := registry.New(runner, cfg.Agent.StepBudget, logger)
	srv := server.New(cfg.HTTP, reg, broker, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := reg.Shutdown(shutdownCtx); err != nil {
		logger.Warn("job shutdown incomplete", zap.Error(err))
	}
	if err := surfaces.Shutdown(shutdownCtx); err != nil {
		logger.Warn("browser shutdown incomplete", zap.Error(err))
	}
	return nil
}
