// File: internal/registry/registry_test.go
package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/agent"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRunner simulates a short job: it records per-job activity into the job
// itself so cross-contamination is detectable.
type fakeRunner struct {
	fail  error
	block chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, job *agent.Job, telemetry schemas.TelemetryPublisher) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.fail != nil {
		return f.fail
	}
	for i := 0; i < 3; i++ {
		sig := fmt.Sprintf("click|selector=#%s-%d", job.ID[:8], i)
		job.RecordFailure(sig)
		job.AppendLog(agent.OutcomeFailure, sig, "simulated failure")
		job.IncrementStep()
		telemetry.Publish(schemas.EventActionFailed, map[string]any{"signature": sig})
	}
	job.Terminate("simulated run complete")
	return nil
}

type panickyRunner struct{}

func (panickyRunner) Run(context.Context, *agent.Job, schemas.TelemetryPublisher) error {
	panic("boom")
}

func drain(t *testing.T, events <-chan schemas.TelemetryEvent) []schemas.TelemetryEvent {
	t.Helper()
	var out []schemas.TelemetryEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("telemetry stream never closed")
		}
	}
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	r := New(&fakeRunner{}, 100, zap.NewNop())
	job := r.Submit(context.Background(), "find things", "https://example.com", 3)

	events, ok := r.Stream(job.ID)
	require.True(t, ok)
	collected := drain(t, events)

	require.NotEmpty(t, collected)
	last := collected[len(collected)-1]
	assert.Equal(t, schemas.EventJobDone, last.Kind)
	assert.Equal(t, job.ID, last.JobID)

	terminated, reason, failure := job.Terminated()
	assert.True(t, terminated)
	assert.Equal(t, "simulated run complete", reason)
	assert.NoError(t, failure)

	require.NoError(t, r.Shutdown(context.Background()))
}

func TestTerminalJobsRetained(t *testing.T) {
	r := New(&fakeRunner{}, 100, zap.NewNop())
	job := r.Submit(context.Background(), "q", "https://example.com", 1)

	events, _ := r.Stream(job.ID)
	drain(t, events)

	got, ok := r.Get(job.ID)
	require.True(t, ok)
	res := got.Result()
	assert.Equal(t, "simulated run complete", res.Reason)

	require.NoError(t, r.Shutdown(context.Background()))
}

func TestRunnerErrorBecomesJobFailure(t *testing.T) {
	r := New(&fakeRunner{fail: errors.New("surface connection lost")}, 100, zap.NewNop())
	job := r.Submit(context.Background(), "q", "https://example.com", 1)

	events, _ := r.Stream(job.ID)
	collected := drain(t, events)
	last := collected[len(collected)-1]
	assert.Equal(t, schemas.EventJobFailed, last.Kind)

	res := job.Result()
	assert.Contains(t, res.Error, "surface connection lost")

	require.NoError(t, r.Shutdown(context.Background()))
}

func TestRunnerPanicIsContained(t *testing.T) {
	r := New(panickyRunner{}, 100, zap.NewNop())
	job := r.Submit(context.Background(), "q", "https://example.com", 1)

	events, _ := r.Stream(job.ID)
	collected := drain(t, events)
	last := collected[len(collected)-1]
	assert.Equal(t, schemas.EventJobFailed, last.Kind)
	assert.Contains(t, job.Result().Error, "panicked")

	require.NoError(t, r.Shutdown(context.Background()))
}

// Two concurrent jobs stay fully isolated: each history and failure memory
// holds only its own signatures.
func TestConcurrentJobsDoNotContaminate(t *testing.T) {
	r := New(&fakeRunner{}, 100, zap.NewNop())

	jobA := r.Submit(context.Background(), "objective a", "https://a.example.com", 3)
	jobB := r.Submit(context.Background(), "objective b", "https://b.example.com", 3)

	eventsA, _ := r.Stream(jobA.ID)
	eventsB, _ := r.Stream(jobB.ID)
	collectedA := drain(t, eventsA)
	collectedB := drain(t, eventsB)

	for _, e := range collectedA {
		assert.Equal(t, jobA.ID, e.JobID)
	}
	for _, e := range collectedB {
		assert.Equal(t, jobB.ID, e.JobID)
	}

	prefixA, prefixB := jobA.ID[:8], jobB.ID[:8]
	for sig := range jobA.FailureMemory {
		assert.Contains(t, sig, prefixA)
		assert.NotContains(t, sig, prefixB)
	}
	for sig := range jobB.FailureMemory {
		assert.Contains(t, sig, prefixB)
		assert.NotContains(t, sig, prefixA)
	}
	for _, entry := range jobA.History {
		assert.NotContains(t, entry.Signature, prefixB)
	}

	require.NoError(t, r.Shutdown(context.Background()))
}

func TestCancelAbortsOnlyTargetJob(t *testing.T) {
	block := make(chan struct{})
	r := New(&fakeRunner{block: block}, 100, zap.NewNop())

	jobA := r.Submit(context.Background(), "q", "https://a.example.com", 1)
	jobB := r.Submit(context.Background(), "q", "https://b.example.com", 1)

	require.True(t, r.Cancel(jobA.ID, errors.New("operator abort")))

	eventsA, _ := r.Stream(jobA.ID)
	collectedA := drain(t, eventsA)
	assert.Equal(t, schemas.EventJobFailed, collectedA[len(collectedA)-1].Kind)

	// jobB is still blocked, unaffected by jobA's cancellation.
	terminated, _, _ := jobB.Terminated()
	assert.False(t, terminated)

	close(block)
	eventsB, _ := r.Stream(jobB.ID)
	collectedB := drain(t, eventsB)
	assert.Equal(t, schemas.EventJobDone, collectedB[len(collectedB)-1].Kind)

	require.NoError(t, r.Shutdown(context.Background()))
}

func TestCancelUnknownJob(t *testing.T) {
	r := New(&fakeRunner{}, 100, zap.NewNop())
	assert.False(t, r.Cancel("missing", nil))
	require.NoError(t, r.Shutdown(context.Background()))
}
