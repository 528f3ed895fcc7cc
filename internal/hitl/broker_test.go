// File: internal/hitl/broker_test.go
package hitl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRequest() schemas.HumanInputRequest {
	return schemas.HumanInputRequest{
		InputType: "email",
		Prompt:    "Please provide your email address",
		CreatedAt: time.Now(),
		Step:      3,
	}
}

func TestRequestResolvedDeliversValue(t *testing.T) {
	b := NewBroker(5*time.Second, zap.NewNop())

	var (
		wg    sync.WaitGroup
		value string
		err   error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		value, err = b.Request(context.Background(), "job-1", testRequest())
	}()

	// Wait for the request to register before resolving.
	require.Eventually(t, func() bool {
		_, ok := b.Pending("job-1")
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Resolve("job-1", "test@example.com"))
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, "test@example.com", value)
	assert.Zero(t, b.PendingCount())
}

func TestRequestTimeoutClearsTable(t *testing.T) {
	b := NewBroker(20*time.Millisecond, zap.NewNop())

	_, err := b.Request(context.Background(), "job-1", testRequest())
	require.ErrorIs(t, err, schemas.ErrInputTimeout)

	// Scenario: after the timeout the pending table no longer contains the
	// job, and a late response is rejected.
	_, ok := b.Pending("job-1")
	assert.False(t, ok)
	assert.ErrorIs(t, b.Resolve("job-1", "too late"), schemas.ErrNoPendingRequest)
}

func TestSecondLiveRequestRejected(t *testing.T) {
	b := NewBroker(5*time.Second, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = b.Request(context.Background(), "job-1", testRequest())
	}()

	require.Eventually(t, func() bool {
		_, ok := b.Pending("job-1")
		return ok
	}, time.Second, 5*time.Millisecond)

	_, err := b.Request(context.Background(), "job-1", testRequest())
	assert.ErrorIs(t, err, schemas.ErrRequestPending)

	require.NoError(t, b.Resolve("job-1", "value"))
	wg.Wait()
}

func TestResolveWithoutRequestRejected(t *testing.T) {
	b := NewBroker(time.Second, zap.NewNop())
	assert.ErrorIs(t, b.Resolve("ghost", "value"), schemas.ErrNoPendingRequest)
}

func TestRequestCancelledByContext(t *testing.T) {
	b := NewBroker(time.Minute, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	var (
		wg  sync.WaitGroup
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err = b.Request(ctx, "job-1", testRequest())
	}()

	require.Eventually(t, func() bool {
		_, ok := b.Pending("job-1")
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()

	require.Error(t, err)
	assert.Zero(t, b.PendingCount())
}

func TestJobsWaitIndependently(t *testing.T) {
	b := NewBroker(5*time.Second, zap.NewNop())

	results := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, jobID := range []string{"job-a", "job-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			value, err := b.Request(context.Background(), id, testRequest())
			require.NoError(t, err)
			mu.Lock()
			results[id] = value
			mu.Unlock()
		}(jobID)
	}

	require.Eventually(t, func() bool { return b.PendingCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Resolve("job-b", "beta"))
	require.NoError(t, b.Resolve("job-a", "alpha"))
	wg.Wait()

	assert.Equal(t, "alpha", results["job-a"])
	assert.Equal(t, "beta", results["job-b"])
}
