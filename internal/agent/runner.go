// File: internal/agent/runner.go
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// Runner is the production job runner: it refines the objective, opens a
// dedicated surface session and hands the job to a controller.
type Runner struct {
	surfaces schemas.SurfaceManager
	oracle   schemas.DecisionOracle
	broker   schemas.InputBroker
	locator  schemas.ElementLocator
	solver   schemas.ChallengeSolver
	cfg      config.AgentConfig
	logger   *zap.Logger
}

// NewRunner wires the collaborators shared by all jobs. solver may be nil.
func NewRunner(
	surfaces schemas.SurfaceManager,
	oracle schemas.DecisionOracle,
	broker schemas.InputBroker,
	locator schemas.ElementLocator,
	solver schemas.ChallengeSolver,
	cfg config.AgentConfig,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		surfaces: surfaces,
		oracle:   oracle,
		broker:   broker,
		locator:  locator,
		solver:   solver,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run drives one job to a terminal state.
func (r *Runner) Run(ctx context.Context, job *Job, telemetry schemas.TelemetryPublisher) error {
	telemetry.Publish(schemas.EventJobStarted, map[string]any{
		"query": job.RawQuery,
		"url":   job.TargetURL,
	})

	r.refine(ctx, job, telemetry)

	surface, err := r.surfaces.NewSurface(ctx)
	if err != nil {
		return fmt.Errorf("opening surface session: %w", err)
	}
	defer func() {
		if cerr := surface.Close(context.WithoutCancel(ctx)); cerr != nil {
			r.logger.Debug("surface close failed", zap.String("job_id", job.ID), zap.Error(cerr))
		}
	}()

	executor := NewExecutor(surface, r.locator, r.broker, telemetry, r.cfg, r.logger)
	controller := NewController(job, surface, r.oracle, executor, r.solver, telemetry, r.cfg, r.logger)
	return controller.Run(ctx)
}

// refine asks the oracle to rewrite the raw query into an actionable
// objective. Failure falls back to the raw query.
func (r *Runner) refine(ctx context.Context, job *Job, telemetry schemas.TelemetryPublisher) {
	refined, usage, err := r.oracle.Refine(ctx, job.TargetURL, job.RawQuery)
	if err != nil {
		job.AddUsage(schemas.UsageRecord{Task: "refine_prompt", Error: firstLine(err.Error())})
		r.logger.Warn("prompt refinement failed, using raw query",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	job.AddUsage(schemas.UsageRecord{
		Task:         "refine_prompt",
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	})
	job.SetObjective(refined)
	telemetry.Publish(schemas.EventPromptRefined, map[string]any{
		"refined_query": refined,
		"usage":         usage,
	})
}
