// File: internal/hitl/broker.go

// Package hitl suspends running jobs on external human input and resumes
// them when a response arrives. The pending table is process wide; entries
// are keyed by job id and at most one is live per job.
package hitl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// pendingRequest is one live wait. The channel is buffered so a resolver can
// deliver without blocking even if the waiter is between select cases.
type pendingRequest struct {
	req schemas.HumanInputRequest
	ch  chan string
}

// Broker implements schemas.InputBroker with a mutex-guarded pending table
// and a rendezvous channel per request. Resolution and timeout are mutually
// exclusive: whichever removes the table entry first wins.
type Broker struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest

	timeout time.Duration
	logger  *zap.Logger
}

// NewBroker creates a broker whose waits expire after timeout.
func NewBroker(timeout time.Duration, logger *zap.Logger) *Broker {
	return &Broker{
		pending: make(map[string]*pendingRequest),
		timeout: timeout,
		logger:  logger.Named("hitl"),
	}
}

// Request registers req for jobID and blocks until a response is delivered,
// the timeout elapses, or ctx is cancelled. A second live request for the
// same job is rejected with ErrRequestPending.
func (b *Broker) Request(ctx context.Context, jobID string, req schemas.HumanInputRequest) (string, error) {
	entry := &pendingRequest{req: req, ch: make(chan string, 1)}

	b.mu.Lock()
	if _, exists := b.pending[jobID]; exists {
		b.mu.Unlock()
		return "", schemas.ErrRequestPending
	}
	b.pending[jobID] = entry
	b.mu.Unlock()

	b.logger.Info("waiting for human input",
		zap.String("job_id", jobID),
		zap.String("input_type", req.InputType),
		zap.Bool("sensitive", req.Sensitive))

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case value := <-entry.ch:
		return value, nil

	case <-timer.C:
		if b.abandon(jobID, entry) {
			b.logger.Warn("human input wait timed out", zap.String("job_id", jobID))
			return "", fmt.Errorf("no response after %s: %w", b.timeout, schemas.ErrInputTimeout)
		}
		// Resolve won the race while the timer fired. Take the value.
		return <-entry.ch, nil

	case <-ctx.Done():
		if b.abandon(jobID, entry) {
			return "", fmt.Errorf("wait cancelled: %w", context.Cause(ctx))
		}
		return <-entry.ch, nil
	}
}

// abandon removes this wait's table entry if it is still registered.
// It returns false when a resolver already claimed the entry, in which case
// the value is guaranteed to be in flight on the channel.
func (b *Broker) abandon(jobID string, entry *pendingRequest) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.pending[jobID]; ok && current == entry {
		delete(b.pending, jobID)
		return true
	}
	return false
}

// Resolve delivers a response to the job's live request and clears it.
func (b *Broker) Resolve(jobID, value string) error {
	b.mu.Lock()
	entry, ok := b.pending[jobID]
	if ok {
		delete(b.pending, jobID)
	}
	b.mu.Unlock()

	if !ok {
		return schemas.ErrNoPendingRequest
	}
	// Buffered channel: the send never blocks.
	entry.ch <- value
	b.logger.Info("human input resolved", zap.String("job_id", jobID))
	return nil
}

// Pending returns the live request for a job, if any.
func (b *Broker) Pending(jobID string) (schemas.HumanInputRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.pending[jobID]
	if !ok {
		return schemas.HumanInputRequest{}, false
	}
	return entry.req, true
}

// PendingCount reports how many jobs are currently suspended.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
