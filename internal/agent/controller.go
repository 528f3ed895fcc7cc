// File: internal/agent/controller.go
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// Controller drives one job through its navigate, decide, execute, supervise
// cycle until a terminal verdict. Strictly sequential within the job; all
// concurrency lives above it in the registry.
type Controller struct {
	job       *Job
	surface   schemas.InteractionSurface
	oracle    schemas.DecisionOracle
	executor  *Executor
	solver    schemas.ChallengeSolver
	telemetry schemas.TelemetryPublisher
	cfg       config.AgentConfig
	logger    *zap.Logger
}

// NewController assembles the loop for one job. solver may be nil.
func NewController(
	job *Job,
	surface schemas.InteractionSurface,
	oracle schemas.DecisionOracle,
	executor *Executor,
	solver schemas.ChallengeSolver,
	telemetry schemas.TelemetryPublisher,
	cfg config.AgentConfig,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		job:       job,
		surface:   surface,
		oracle:    oracle,
		executor:  executor,
		solver:    solver,
		telemetry: telemetry,
		cfg:       cfg,
		logger:    logger.Named("controller").With(zap.String("job_id", job.ID)),
	}
}

// Run executes the job to completion. The returned error is the job's
// terminal failure, nil for a normally terminated job.
func (c *Controller) Run(ctx context.Context) error {
	c.navigate(ctx)

	for {
		if err := ctx.Err(); err != nil {
			c.job.Fail(fmt.Errorf("job cancelled: %w", context.Cause(ctx)))
			return err
		}

		proposal := c.decide(ctx)

		if err := c.executor.Execute(ctx, c.job, proposal.Action); err != nil {
			c.job.Fail(err)
			return err
		}

		verdict := Supervise(proposal.Action,
			c.job.ResultCount(), c.job.TargetCount,
			c.job.CurrentStep(), c.job.StepBudget)
		if verdict.Stop {
			c.job.Terminate(verdict.Reason)
			c.logger.Info("job terminated", zap.String("reason", verdict.Reason))
			return nil
		}
	}
}

// navigate performs the single initial navigation. A failed navigation is
// reported but not fatal; the oracle sees whatever the surface shows.
func (c *Controller) navigate(ctx context.Context) {
	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
	defer cancel()

	if err := c.surface.Navigate(navCtx, c.job.TargetURL); err != nil {
		c.telemetry.Publish(schemas.EventNavigationFail, map[string]any{
			"url":   c.job.TargetURL,
			"error": firstLine(err.Error()),
		})
		c.job.AppendLog(OutcomeFailure, "", "navigation failed: "+firstLine(err.Error()))
		c.logger.Warn("navigation failed", zap.String("url", c.job.TargetURL), zap.Error(err))
	} else {
		c.telemetry.Publish(schemas.EventNavigation, map[string]any{"url": c.job.TargetURL})
	}

	c.checkChallenge(ctx)

	// Blank any pre-filled inputs so the oracle starts from a clean form.
	// Suppressed while a human input exchange is in flight.
	if flow, _ := c.job.InputState(); flow == InputIdle {
		if err := c.surface.ClearInputs(ctx); err != nil {
			c.logger.Debug("input clearing failed", zap.Error(err))
		}
	}
}

// checkChallenge runs the optional solver against the freshly loaded page.
func (c *Controller) checkChallenge(ctx context.Context) {
	if c.solver == nil {
		return
	}
	desc, err := c.solver.Detect(ctx, c.surface)
	if err != nil || desc == nil {
		return
	}
	c.logger.Info("verification challenge detected",
		zap.String("kind", desc.Kind), zap.String("sitekey", desc.SiteKey))
	token, err := c.solver.Solve(ctx, desc)
	if err != nil {
		c.job.AppendLog(OutcomeFailure, "", "challenge solving failed: "+firstLine(err.Error()))
		return
	}
	if err := applyChallengeToken(ctx, c.surface, desc, token); err != nil {
		c.job.AppendLog(OutcomeFailure, "", "challenge token injection failed: "+firstLine(err.Error()))
		return
	}
	c.job.AppendLog(OutcomeInfo, "", "verification challenge solved: "+desc.Kind)
}

// decide captures the page state, renders history and asks the oracle for one
// action. Any oracle failure degrades into a diagnostic finish so the loop
// always has an action to execute.
func (c *Controller) decide(ctx context.Context) schemas.Proposal {
	step := c.job.CurrentStep()
	c.telemetry.Publish(schemas.EventAgentStep, map[string]any{
		"step":      step,
		"max_steps": c.job.StepBudget,
	})

	screenshot := c.captureScreenshot(ctx, step)

	pageURL, err := c.surface.CurrentURL(ctx)
	if err != nil {
		pageURL = c.job.TargetURL
	}
	content, err := c.surface.Content(ctx)
	if err != nil {
		c.logger.Warn("content read failed", zap.Error(err))
	}

	history := RenderHistory(HistoryWindow(c.job, c.cfg.HistoryWindow, failureRenderN))

	proposal, usage, err := c.oracle.Decide(ctx, schemas.DecideRequest{
		Objective:  c.job.Objective,
		URL:        pageURL,
		Content:    content,
		Screenshot: screenshot,
		History:    history,
	})
	if err != nil {
		msg := firstLine(err.Error())
		c.job.AddUsage(schemas.UsageRecord{
			Task:  fmt.Sprintf("agent_step_%d_failed", step),
			Error: msg,
		})
		c.logger.Warn("oracle decision failed", zap.Int("step", step), zap.String("error", msg))
		return schemas.Proposal{
			Thought: "decision unavailable",
			Action:  schemas.FinishAction("agent reasoning failed: " + msg),
		}
	}

	c.job.AddUsage(schemas.UsageRecord{
		Task:         fmt.Sprintf("agent_step_%d", step),
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	})
	c.telemetry.Publish(schemas.EventAgentThought, map[string]any{
		"thought": proposal.Thought,
		"usage":   usage,
	})
	return proposal
}

// failureRenderN bounds how many banned signatures the oracle is warned about.
const failureRenderN = 8

// captureScreenshot stores a best-effort screenshot under the artifacts
// directory. Failures are reported on telemetry and otherwise ignored.
func (c *Controller) captureScreenshot(ctx context.Context, step int) []byte {
	if !c.cfg.Screenshots {
		return nil
	}
	img, err := c.surface.Screenshot(ctx)
	if err != nil {
		c.telemetry.Publish(schemas.EventScreenshotFail, map[string]any{
			"step":  step,
			"error": firstLine(err.Error()),
		})
		return nil
	}

	dir := filepath.Join(c.cfg.ArtifactsDir, c.job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.logger.Debug("artifacts dir unavailable", zap.Error(err))
		return img
	}
	name := fmt.Sprintf("%02d_step.png", step)
	if err := os.WriteFile(filepath.Join(dir, name), img, 0o644); err != nil {
		c.logger.Debug("screenshot write failed", zap.Error(err))
		return img
	}
	c.job.AppendScreenshot(filepath.Join(c.job.ID, name))
	return img
}

// applyChallengeToken writes a solved token into the page's response field
// and fires the provider callback when one is registered.
func applyChallengeToken(ctx context.Context, surface schemas.InteractionSurface, desc *schemas.ChallengeDescriptor, token string) error {
	script := fmt.Sprintf(`(() => {
		const token = %q;
		const names = ['g-recaptcha-response', 'cf-turnstile-response', 'h-captcha-response'];
		let applied = false;
		for (const name of names) {
			for (const el of document.querySelectorAll('textarea[name="' + name + '"], input[name="' + name + '"]')) {
				el.value = token;
				el.dispatchEvent(new Event('change', { bubbles: true }));
				applied = true;
			}
		}
		if (window.onCaptchaSuccess) { try { window.onCaptchaSuccess(token); applied = true; } catch (e) {} }
		return applied;
	})()`, token)

	var applied bool
	if err := surface.Evaluate(ctx, script, &applied); err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("no response field found for %s challenge", desc.Kind)
	}
	return nil
}
