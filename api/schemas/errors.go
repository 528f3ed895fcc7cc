// -- api/schemas/errors.go --

package schemas

import "errors"

// Broker errors. They live next to the InputBroker contract so both the
// orchestration core and the HTTP surface can match on them.
var (
	// ErrRequestPending is returned when a job tries to open a second live
	// human input request.
	ErrRequestPending = errors.New("a human input request is already pending for this job")

	// ErrNoPendingRequest is returned when a response arrives for a job with
	// no live request.
	ErrNoPendingRequest = errors.New("no pending human input request for this job")

	// ErrInputTimeout is returned when no response arrives within the wait
	// window. It is terminal for the owning job.
	ErrInputTimeout = errors.New("timed out waiting for human input")
)

// Surface errors. The executor needs to tell a slow element apart from a
// dead browser session: the former feeds failure memory, the latter ends
// the job.
var (
	// ErrActionTimeout is returned when a single surface call exhausts its
	// per-action budget while the session itself is healthy. Never terminal.
	ErrActionTimeout = errors.New("action timed out")

	// ErrSurfaceLost is returned when the browser session backing a surface
	// is gone. Terminal for the owning job.
	ErrSurfaceLost = errors.New("browser session lost")
)
