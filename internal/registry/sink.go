// File: internal/registry/sink.go
package registry

import (
	"sync"
	"time"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// sinkBuffer is how many events a job's stream holds before old ones are
// dropped.
const sinkBuffer = 256

// Sink is the per-job telemetry channel. Publishing never blocks the job
// loop: when the buffer is full the oldest event is dropped. The channel is
// closed when a terminal event goes through, which ends any SSE stream
// draining it.
type Sink struct {
	mu     sync.Mutex
	jobID  string
	ch     chan schemas.TelemetryEvent
	closed bool
}

// NewSink creates the event stream for one job.
func NewSink(jobID string) *Sink {
	return &Sink{
		jobID: jobID,
		ch:    make(chan schemas.TelemetryEvent, sinkBuffer),
	}
}

// Publish pushes one event onto the stream. Events published after the
// terminal event are discarded.
func (s *Sink) Publish(kind schemas.TelemetryEventKind, detail map[string]any) {
	event := schemas.TelemetryEvent{
		JobID:     s.jobID,
		Kind:      kind,
		Timestamp: time.Now(),
		Detail:    detail,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for {
		select {
		case s.ch <- event:
			if kind.Terminal() {
				s.closed = true
				close(s.ch)
			}
			return
		default:
			// Buffer full: drop the oldest event and retry.
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

// Events returns the receive side of the stream. It is closed after the
// terminal event.
func (s *Sink) Events() <-chan schemas.TelemetryEvent {
	return s.ch
}

// Closed reports whether the terminal event has been emitted.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
