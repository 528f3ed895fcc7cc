// File: internal/agent/executor.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// dismissClickTimeout is the slightly wider budget used when clicking a
// located popup dismissal target.
const dismissClickTimeout = 5 * time.Second

// Executor carries a proposed action out against the interaction surface.
// It owns the dedup gate: an action whose signature has previously failed is
// never re-executed, and the step counter advances on every path.
type Executor struct {
	surface   schemas.InteractionSurface
	locator   schemas.ElementLocator
	broker    schemas.InputBroker
	telemetry schemas.TelemetryPublisher
	cfg       config.AgentConfig
	logger    *zap.Logger
}

// NewExecutor wires an executor for a single job's surface session.
func NewExecutor(
	surface schemas.InteractionSurface,
	locator schemas.ElementLocator,
	broker schemas.InputBroker,
	telemetry schemas.TelemetryPublisher,
	cfg config.AgentConfig,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		surface:   surface,
		locator:   locator,
		broker:    broker,
		telemetry: telemetry,
		cfg:       cfg,
		logger:    logger.Named("executor"),
	}
}

// Execute runs one proposed action for the job. Action level failures are
// absorbed into the failure memory and a nil error is returned; only
// conditions that must terminate the job (input timeout, context
// cancellation) surface as errors.
func (e *Executor) Execute(ctx context.Context, job *Job, action schemas.Action) error {
	sig := ActionSignature(action)
	job.RecordAttempt(action, sig)

	if job.IsBanned(sig) {
		job.AppendLog(OutcomeSkipped, sig, "skipped previously failed action, choosing alternative")
		e.telemetry.Publish(schemas.EventDuplicateSkip, map[string]any{"signature": sig})
		// Zero valued entry keeps the usage timeline aligned with steps.
		job.AddUsage(schemas.UsageRecord{
			Task:    fmt.Sprintf("action_skip_%d", job.CurrentStep()),
			Skipped: sig,
		})
		job.IncrementStep()
		return nil
	}

	e.telemetry.Publish(schemas.EventExecutingAction, map[string]any{
		"action":    action,
		"signature": sig,
	})

	err := e.dispatch(ctx, job, action)
	if err != nil {
		if isTerminal(ctx, err) {
			job.IncrementStep()
			return err
		}
		msg := firstLine(err.Error())
		job.RecordFailure(sig)
		job.AppendLog(OutcomeFailure, sig, fmt.Sprintf("error=%q (will avoid repeating)", msg))
		e.telemetry.Publish(schemas.EventActionFailed, map[string]any{
			"signature": sig,
			"error":     msg,
		})
		e.logger.Warn("action failed",
			zap.String("job_id", job.ID),
			zap.String("signature", sig),
			zap.String("error", msg))
	} else if action.Type != schemas.ActionRequestHumanInput {
		job.AppendLog(OutcomeSuccess, sig, "executed successfully")
	}

	job.IncrementStep()
	return nil
}

func (e *Executor) dispatch(ctx context.Context, job *Job, action schemas.Action) error {
	switch action.Type {
	case schemas.ActionClick:
		return e.surface.Click(ctx, action.Selector, e.cfg.ClickTimeout)

	case schemas.ActionFill:
		text := action.Text
		if value, ok := job.TakeResponse(action.Text); ok {
			text = value
		}
		return e.surface.Fill(ctx, action.Selector, text, e.cfg.FillTimeout)

	case schemas.ActionPress:
		return e.surface.Press(ctx, action.Selector, action.Key, e.cfg.PressTimeout)

	case schemas.ActionScroll:
		// Zero delta means one viewport height.
		return e.surface.ScrollBy(ctx, 0)

	case schemas.ActionExtract:
		return e.extract(ctx, job, action)

	case schemas.ActionSearchElement:
		return e.searchElement(ctx, job, action)

	case schemas.ActionDismissByText:
		return e.dismissByText(ctx, job, action)

	case schemas.ActionRequestHumanInput:
		return e.requestInput(ctx, job, action)

	case schemas.ActionFinish:
		// Terminal intent; the supervisor acts on it.
		job.AppendLog(OutcomeInfo, "", "finish proposed: "+action.Reason)
		return nil

	default:
		return fmt.Errorf("unsupported action type %q", action.Type)
	}
}

// extract appends the proposed items to the result list, resolving relative
// url fields against the surface's current location.
func (e *Executor) extract(ctx context.Context, job *Job, action schemas.Action) error {
	base, err := e.surface.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("reading current url: %w", err)
	}
	items := make([]schemas.ExtractedItem, 0, len(action.Items))
	for _, item := range action.Items {
		resolved := make(schemas.ExtractedItem, len(item))
		for k, v := range item {
			resolved[k] = v
		}
		if raw, ok := resolved["url"]; ok && raw != "" {
			resolved["url"] = resolveURL(base, raw)
		}
		items = append(items, resolved)
	}
	total := job.AppendResults(items)
	e.telemetry.Publish(schemas.EventPartialResult, map[string]any{
		"new_items_found": len(items),
		"total_items":     total,
	})
	return nil
}

// searchElement runs the live locator and stores the bounded candidate set as
// one-shot context for the next decision.
func (e *Executor) searchElement(ctx context.Context, job *Job, action schemas.Action) error {
	matches, err := e.locator.Search(ctx, e.surface, action.Text)
	if err != nil {
		return fmt.Errorf("element search for %q: %w", action.Text, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no elements found containing %q", action.Text)
	}
	job.SetCandidates(action.Text, matches)
	job.AppendLog(OutcomeSuccess, "",
		fmt.Sprintf("found %d candidate elements for %q", len(matches), action.Text))
	return nil
}

// dismissByText locates the first visible clickable element carrying the text
// and clicks it.
func (e *Executor) dismissByText(ctx context.Context, job *Job, action schemas.Action) error {
	matches, err := e.locator.Search(ctx, e.surface, action.Text)
	if err != nil {
		return fmt.Errorf("element search for %q: %w", action.Text, err)
	}
	for _, m := range matches {
		if !m.Visible || !m.Clickable || len(m.Selectors) == 0 {
			continue
		}
		if err := e.surface.Click(ctx, m.Selectors[0], dismissClickTimeout); err != nil {
			return fmt.Errorf("clicking dismissal target %q: %w", m.Selectors[0], err)
		}
		job.AppendLog(OutcomeSuccess, "",
			fmt.Sprintf("dismissed popup via %q using selector %q", action.Text, m.Selectors[0]))
		return nil
	}
	return fmt.Errorf("no clickable element with text %q to dismiss popup", action.Text)
}

// requestInput suspends the job on the broker until a human responds or the
// wait times out. A timeout is terminal for the job.
func (e *Executor) requestInput(ctx context.Context, job *Job, action schemas.Action) error {
	req := schemas.HumanInputRequest{
		InputType: action.InputType,
		Prompt:    action.Prompt,
		Sensitive: action.Sensitive,
		CreatedAt: time.Now(),
		Step:      job.CurrentStep(),
	}
	job.BeginInputWait(&req)
	e.telemetry.Publish(schemas.EventInputRequested, map[string]any{
		"input_type": req.InputType,
		"prompt":     req.Prompt,
		"sensitive":  req.Sensitive,
	})

	value, err := e.broker.Request(ctx, job.ID, req)
	if err != nil {
		job.ClearInputWait()
		return err
	}
	job.BufferResponse(value)
	job.AppendLog(OutcomeSuccess, "", "received human input for: "+req.Prompt)
	e.telemetry.Publish(schemas.EventInputReceived, map[string]any{
		"input_type": req.InputType,
	})
	return nil
}

// isTerminal reports whether an error must stop the whole job instead of
// feeding the failure memory. A per-action timeout from the surface is a
// recoverable failure, so only job-context expiry, an abandoned human-input
// wait, or a lost browser session qualify here.
func isTerminal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, schemas.ErrInputTimeout) || errors.Is(err, schemas.ErrSurfaceLost)
}

// firstLine truncates an error message to its first line, mirroring how the
// history log keeps failure entries compact.
func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// resolveURL joins a possibly relative reference against the page URL. On
// any parse error the raw value is kept.
func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
