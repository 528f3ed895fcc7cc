// -- api/schemas/schemas.go --
package schemas

import "time"

// ElementCandidate is one ranked interaction target returned by the element
// locator. It is read-only: produced by a search, consumed by exactly one
// decision cycle, then discarded.
type ElementCandidate struct {
	TagName     string   `json:"tag_name"`
	Selectors   []string `json:"selectors"`
	Visible     bool     `json:"is_visible"`
	Interactive bool     `json:"is_interactive"`
	Clickable   bool     `json:"is_clickable"`
	Score       float64  `json:"score"`
	TextContent string   `json:"text_content,omitempty"`
}

// HumanInputRequest describes a pending ask for an external value.
// At most one live request exists per job.
type HumanInputRequest struct {
	InputType string    `json:"input_type"`
	Prompt    string    `json:"prompt"`
	Sensitive bool      `json:"is_sensitive"`
	CreatedAt time.Time `json:"created_at"`
	Step      int       `json:"step"`
}

// TelemetryEventKind enumerates the side-channel events a job emits.
type TelemetryEventKind string

const (
	EventJobStarted      TelemetryEventKind = "job_started"
	EventPromptRefined   TelemetryEventKind = "prompt_refined"
	EventNavigation      TelemetryEventKind = "navigation_complete"
	EventNavigationFail  TelemetryEventKind = "navigation_failed"
	EventAgentStep       TelemetryEventKind = "agent_step"
	EventAgentThought    TelemetryEventKind = "agent_thought"
	EventExecutingAction TelemetryEventKind = "executing_action"
	EventActionFailed    TelemetryEventKind = "action_failed"
	EventDuplicateSkip   TelemetryEventKind = "duplicate_action_skipped"
	EventPartialResult   TelemetryEventKind = "partial_result"
	EventScreenshotFail  TelemetryEventKind = "screenshot_failed"
	EventInputRequested  TelemetryEventKind = "user_input_requested"
	EventInputReceived   TelemetryEventKind = "user_input_received"
	EventJobDone         TelemetryEventKind = "job_done"
	EventJobFailed       TelemetryEventKind = "job_failed"
)

// Terminal reports whether the event closes the job's stream.
func (k TelemetryEventKind) Terminal() bool {
	return k == EventJobDone || k == EventJobFailed
}

// TelemetryEvent is a push-only progress notification. It is never stored as
// authoritative job state.
type TelemetryEvent struct {
	JobID     string             `json:"job_id"`
	Kind      TelemetryEventKind `json:"msg"`
	Timestamp time.Time          `json:"ts"`
	Detail    map[string]any     `json:"details,omitempty"`
}

// UsageRecord ties an oracle call's token cost to the step that incurred it.
// Skipped-duplicate steps record a zero entry to keep the timeline aligned.
type UsageRecord struct {
	Task         string `json:"task"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Skipped      string `json:"skipped_signature,omitempty"`
	Error        string `json:"error,omitempty"`
}

// JobResult is the terminal, queryable outcome of a job. A queried job always
// shows either a populated result set with Reason, or an Error cause, never
// an unresolved state.
type JobResult struct {
	JobID       string          `json:"job_id"`
	Results     []ExtractedItem `json:"results"`
	Screenshots []string        `json:"screenshots"`
	Reason      string          `json:"reason,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// JobStatus is a point-in-time snapshot for the status endpoint.
type JobStatus struct {
	JobID           string             `json:"job_id"`
	Step            int                `json:"step"`
	StepBudget      int                `json:"max_steps"`
	ResultCount     int                `json:"result_count"`
	TargetCount     int                `json:"target_count"`
	WaitingForInput bool               `json:"waiting_for_input"`
	HasResult       bool               `json:"has_result"`
	Usage           []UsageRecord      `json:"token_usage,omitempty"`
	PendingInput    *HumanInputRequest `json:"pending_input,omitempty"`
	Result          *JobResult         `json:"result,omitempty"`
}

// ChallengeDescriptor identifies a blocking verification challenge detected
// on the page.
type ChallengeDescriptor struct {
	Kind       string  `json:"type"`
	SiteKey    string  `json:"sitekey"`
	PageURL    string  `json:"page_url"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}
