// File: internal/registry/registry.go

// Package registry owns the process-wide job table. Each submitted job runs
// on its own goroutine; terminal jobs stay in the table so their results
// remain queryable.
package registry

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/agent"
)

// JobRunner drives one job from navigation to a terminal state. The registry
// only cares that it returns: a nil error means the job terminated normally.
type JobRunner interface {
	Run(ctx context.Context, job *agent.Job, telemetry schemas.TelemetryPublisher) error
}

type entry struct {
	job    *agent.Job
	sink   *Sink
	cancel context.CancelCauseFunc
}

// Registry is the concurrency-safe job table.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*entry

	runner     JobRunner
	stepBudget int
	wg         sync.WaitGroup
	logger     *zap.Logger
}

// New creates a registry that hands submitted jobs to runner.
func New(runner JobRunner, stepBudget int, logger *zap.Logger) *Registry {
	return &Registry{
		jobs:       make(map[string]*entry),
		runner:     runner,
		stepBudget: stepBudget,
		logger:     logger.Named("registry"),
	}
}

// Submit registers a new job and starts its goroutine. The returned job is
// live immediately; its telemetry stream is available under the same id.
func (r *Registry) Submit(ctx context.Context, rawQuery, targetURL string, targetCount int) *agent.Job {
	job := agent.NewJob(rawQuery, targetURL, targetCount, r.stepBudget)
	sink := NewSink(job.ID)

	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))

	r.mu.Lock()
	r.jobs[job.ID] = &entry{job: job, sink: sink, cancel: cancel}
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(runCtx, job, sink)

	r.logger.Info("job submitted",
		zap.String("job_id", job.ID),
		zap.String("url", targetURL),
		zap.Int("target_count", targetCount))
	return job
}

// run executes one job and guarantees a terminal telemetry event. No error,
// including a panic in the runner, escapes the job's goroutine.
func (r *Registry) run(ctx context.Context, job *agent.Job, sink *Sink) {
	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("job runner panicked: %v", rec)
			job.Fail(err)
			r.logger.Error("job panicked", zap.String("job_id", job.ID), zap.Any("panic", rec))
			sink.Publish(schemas.EventJobFailed, map[string]any{"error": err.Error()})
		}
	}()

	if err := r.runner.Run(ctx, job, sink); err != nil {
		job.Fail(err)
		r.logger.Warn("job failed", zap.String("job_id", job.ID), zap.Error(err))
		sink.Publish(schemas.EventJobFailed, map[string]any{"error": err.Error()})
		return
	}

	_, reason, _ := job.Terminated()
	sink.Publish(schemas.EventJobDone, map[string]any{"reason": reason})
	r.logger.Info("job done", zap.String("job_id", job.ID), zap.String("reason", reason))
}

// Get returns a job by id. Terminal jobs remain retrievable.
func (r *Registry) Get(jobID string) (*agent.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return nil, false
	}
	return e.job, true
}

// Stream returns the telemetry stream for a job.
func (r *Registry) Stream(jobID string) (<-chan schemas.TelemetryEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return nil, false
	}
	return e.sink.Events(), true
}

// Cancel aborts a running job with the given cause. Cancelling a terminal
// job is a no-op.
func (r *Registry) Cancel(jobID string, cause error) bool {
	r.mu.Lock()
	e, ok := r.jobs[jobID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.cancel(cause)
	return true
}

// Shutdown cancels every running job and waits for their goroutines, bounded
// by ctx.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, e := range r.jobs {
		e.cancel(context.Canceled)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("registry shutdown timed out: %w", ctx.Err())
	}
}
