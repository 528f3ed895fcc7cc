// File: internal/agent/job.go
package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// LogOutcome classifies a single history log entry.
type LogOutcome string

const (
	OutcomeSuccess LogOutcome = "success"
	OutcomeFailure LogOutcome = "failure"
	OutcomeSkipped LogOutcome = "skipped"
	OutcomeInfo    LogOutcome = "info"
)

// LogEntry is one append-only record of what happened at a given step.
type LogEntry struct {
	Step      int
	Outcome   LogOutcome
	Signature string
	Message   string
	At        time.Time
}

// InputFlow tracks where a job sits in the human input exchange.
type InputFlow int

const (
	// InputIdle means no human input activity is in flight.
	InputIdle InputFlow = iota
	// InputWaiting means the job is suspended on a live request.
	InputWaiting
	// InputBuffered means a response arrived and awaits consumption by a
	// subsequent fill action.
	InputBuffered
)

// Job is the complete mutable state of one orchestration run. All access goes
// through the mutex so the HTTP surface can snapshot a job while its loop
// goroutine mutates it.
type Job struct {
	mu sync.Mutex

	ID          string
	Objective   string
	RawQuery    string
	TargetURL   string
	TargetCount int

	// Step starts at 1 and advances exactly once per loop iteration,
	// including iterations that skip a banned action.
	Step       int
	StepBudget int

	Results     []schemas.ExtractedItem
	Screenshots []string
	History     []LogEntry

	FailureMemory       map[string]int
	AttemptedSignatures []string
	LastAction          schemas.Action

	// Candidates holds one-shot element search output. It is rendered into
	// the next oracle prompt and then cleared.
	Candidates          []schemas.ElementCandidate
	CandidateSearchText string

	PendingInput  *schemas.HumanInputRequest
	inputResponse string
	inputFlow     InputFlow

	Usage []schemas.UsageRecord

	terminationReason string
	terminated        bool
	failure           error
	CreatedAt         time.Time
}

// NewJob creates a fresh job with its counters at their starting values.
func NewJob(rawQuery, targetURL string, targetCount, stepBudget int) *Job {
	return &Job{
		ID:            uuid.NewString(),
		Objective:     rawQuery,
		RawQuery:      rawQuery,
		TargetURL:     targetURL,
		TargetCount:   targetCount,
		Step:          1,
		StepBudget:    stepBudget,
		FailureMemory: make(map[string]int),
		CreatedAt:     time.Now(),
	}
}

// SetObjective replaces the working objective, typically with the refined
// version produced at submission time.
func (j *Job) SetObjective(objective string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if strings.TrimSpace(objective) != "" {
		j.Objective = objective
	}
}

// IncrementStep advances the step counter. Every executor path calls this
// exactly once per cycle.
func (j *Job) IncrementStep() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Step++
}

// CurrentStep returns the step counter.
func (j *Job) CurrentStep() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Step
}

// RecordAttempt registers a proposed action and its signature before the
// dedup gate runs.
func (j *Job) RecordAttempt(action schemas.Action, signature string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.LastAction = action
	j.AttemptedSignatures = append(j.AttemptedSignatures, signature)
}

// IsBanned reports whether a signature has previously failed for this job.
func (j *Job) IsBanned(signature string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.FailureMemory[signature]
	return ok
}

// RecordFailure increments the failure count for a signature. There is no
// expiry: one failure bans the signature for the lifetime of the job.
func (j *Job) RecordFailure(signature string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.FailureMemory[signature]++
}

// AppendLog adds one history entry stamped with the current step.
func (j *Job) AppendLog(outcome LogOutcome, signature, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.History = append(j.History, LogEntry{
		Step:      j.Step,
		Outcome:   outcome,
		Signature: signature,
		Message:   message,
		At:        time.Now(),
	})
}

// AppendResults adds extracted items to the ordered result list and returns
// the new total.
func (j *Job) AppendResults(items []schemas.ExtractedItem) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results = append(j.Results, items...)
	return len(j.Results)
}

// ResultCount returns the number of collected results.
func (j *Job) ResultCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.Results)
}

// AppendScreenshot records a screenshot reference.
func (j *Job) AppendScreenshot(ref string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Screenshots = append(j.Screenshots, ref)
}

// AddUsage appends one usage record. Skipped steps add zero valued entries so
// the usage timeline stays aligned with the step counter.
func (j *Job) AddUsage(rec schemas.UsageRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Usage = append(j.Usage, rec)
}

// SetCandidates stores one-shot element search output along with the text
// that produced it.
func (j *Job) SetCandidates(searchText string, cands []schemas.ElementCandidate) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Candidates = cands
	j.CandidateSearchText = searchText
}

// TakeCandidates returns the stored candidates and clears them.
func (j *Job) TakeCandidates() (string, []schemas.ElementCandidate) {
	j.mu.Lock()
	defer j.mu.Unlock()
	text, cands := j.CandidateSearchText, j.Candidates
	j.Candidates = nil
	j.CandidateSearchText = ""
	return text, cands
}

// BeginInputWait marks the job as suspended on a live human input request.
func (j *Job) BeginInputWait(req *schemas.HumanInputRequest) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.PendingInput = req
	j.inputFlow = InputWaiting
}

// BufferResponse stores a delivered human input value for the next fill.
func (j *Job) BufferResponse(value string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.PendingInput = nil
	j.inputResponse = value
	j.inputFlow = InputBuffered
}

// ClearInputWait resets the input exchange, used when a request times out.
func (j *Job) ClearInputWait() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.PendingInput = nil
	j.inputResponse = ""
	j.inputFlow = InputIdle
}

// TakeResponse consumes the buffered response if the proposed text refers to
// it. The buffer is single use.
func (j *Job) TakeResponse(proposed string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.inputFlow != InputBuffered {
		return "", false
	}
	if !refersToResponse(proposed, j.inputResponse) {
		return "", false
	}
	value := j.inputResponse
	j.inputResponse = ""
	j.inputFlow = InputIdle
	return value, true
}

// InputState returns the current input flow phase and any live request.
func (j *Job) InputState() (InputFlow, *schemas.HumanInputRequest) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inputFlow, j.PendingInput
}

// Terminate records the termination reason. Only the first call wins; the
// job is immutable in meaning afterwards.
func (j *Job) Terminate(reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.terminated {
		return
	}
	j.terminated = true
	j.terminationReason = reason
}

// Fail records a terminal error for the job.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.terminated {
		return
	}
	j.terminated = true
	j.failure = err
	if err != nil {
		j.terminationReason = err.Error()
	}
}

// Terminated reports whether the job reached a terminal state, and how.
func (j *Job) Terminated() (bool, string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.terminated, j.terminationReason, j.failure
}

// Result assembles the externally visible outcome of the job.
func (j *Job) Result() schemas.JobResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	res := schemas.JobResult{
		JobID:       j.ID,
		Results:     j.Results,
		Screenshots: j.Screenshots,
		Reason:      j.terminationReason,
	}
	if j.failure != nil {
		res.Error = j.failure.Error()
	}
	return res
}

// Status assembles a point-in-time snapshot for the status endpoint.
func (j *Job) Status() schemas.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	st := schemas.JobStatus{
		JobID:           j.ID,
		Step:            j.Step,
		StepBudget:      j.StepBudget,
		ResultCount:     len(j.Results),
		TargetCount:     j.TargetCount,
		WaitingForInput: j.inputFlow == InputWaiting,
		HasResult:       j.terminated,
		Usage:           append([]schemas.UsageRecord(nil), j.Usage...),
	}
	if j.PendingInput != nil {
		req := *j.PendingInput
		st.PendingInput = &req
	}
	if j.terminated {
		res := schemas.JobResult{
			JobID:       j.ID,
			Results:     j.Results,
			Screenshots: j.Screenshots,
			Reason:      j.terminationReason,
		}
		if j.failure != nil {
			res.Error = j.failure.Error()
		}
		st.Result = &res
	}
	return st
}

// TopFailures returns up to n banned signatures ordered by failure count,
// ties broken lexicographically for determinism.
func (j *Job) TopFailures(n int) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	type sigCount struct {
		sig   string
		count int
	}
	all := make([]sigCount, 0, len(j.FailureMemory))
	for sig, count := range j.FailureMemory {
		all = append(all, sigCount{sig, count})
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].count != all[b].count {
			return all[a].count > all[b].count
		}
		return all[a].sig < all[b].sig
	})
	if len(all) > n {
		all = all[:n]
	}
	out := make([]string, len(all))
	for i, sc := range all {
		out[i] = fmt.Sprintf("%s (failed %dx)", sc.sig, sc.count)
	}
	return out
}

// refersToResponse decides whether the oracle's proposed fill text means "use
// the value the human supplied". The oracle never sees the real value, so it
// either echoes a placeholder token or leaves the text empty.
func refersToResponse(proposed, response string) bool {
	if response == "" {
		return false
	}
	p := strings.ToLower(strings.TrimSpace(proposed))
	switch p {
	case "", "<user_input>", "{user_input}", "[user_input]", "user_input",
		"<user_provided>", "[user provided input]":
		return true
	}
	return p == strings.ToLower(response)
}
