// -- api/schemas/interfaces.go --
// Shared contracts between the orchestration core and its external
// collaborators. Keeping them here avoids import cycles between the agent,
// browser and server packages.

package schemas

import (
	"context"
	"time"
)

// InteractionSurface is the driver for one controlled page. A surface is
// exclusively owned by its job for the job's lifetime. Every call either
// completes within its timeout or fails; none blocks indefinitely.
type InteractionSurface interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)

	Click(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, text string, timeout time.Duration) error
	Press(ctx context.Context, selector, key string, timeout time.Duration) error
	ScrollBy(ctx context.Context, deltaY int) error

	// ClearInputs blanks enabled, visible input fields. Best effort; used as
	// pre-step hygiene and suppressed while a human-input flow is pending.
	ClearInputs(ctx context.Context) error

	// Evaluate runs a script in the page and unmarshals its JSON result into
	// out. The locator and the challenge detector are built on this.
	Evaluate(ctx context.Context, script string, out any) error

	Close(ctx context.Context) error
}

// SurfaceManager owns browser lifecycle and hands out one surface per job.
type SurfaceManager interface {
	NewSurface(ctx context.Context) (InteractionSurface, error)
	Shutdown(ctx context.Context) error
}

// ElementLocator finds ranked candidate targets for free text, bounded to a
// small fixed count.
type ElementLocator interface {
	Search(ctx context.Context, surface InteractionSurface, text string) ([]ElementCandidate, error)
}

// DecideRequest carries everything the oracle sees for one step.
type DecideRequest struct {
	Objective  string
	URL        string
	Content    string
	Screenshot []byte // nil when capture failed; the oracle must tolerate that
	History    string
}

// DecisionOracle proposes exactly one action per step. Implementations must
// return transport errors as errors; decode-level garbage is the caller's
// problem and is coerced to a diagnostic finish.
type DecisionOracle interface {
	Refine(ctx context.Context, url, query string) (string, Usage, error)
	Decide(ctx context.Context, req DecideRequest) (Proposal, Usage, error)
}

// ChallengeSolver detects and solves blocking verification challenges.
type ChallengeSolver interface {
	Detect(ctx context.Context, surface InteractionSurface) (*ChallengeDescriptor, error)
	Solve(ctx context.Context, desc *ChallengeDescriptor) (string, error)
}

// InputBroker suspends a job pending an external value.
type InputBroker interface {
	// Request registers req and blocks the calling step until Resolve is
	// called for the job or the broker's timeout elapses. Exactly one of
	// resolution and timeout takes effect.
	Request(ctx context.Context, jobID string, req HumanInputRequest) (string, error)
	Resolve(jobID, value string) error
	Pending(jobID string) (HumanInputRequest, bool)
}

// TelemetryPublisher is the push-only side channel of a running job.
type TelemetryPublisher interface {
	Publish(kind TelemetryEventKind, detail map[string]any)
}
