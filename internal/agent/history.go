// File: internal/agent/history.go
package agent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// HistoryInput is everything the renderer needs to build the history block of
// an oracle prompt. It is assembled under the job lock and rendered without it.
type HistoryInput struct {
	Entries    []LogEntry
	Failures   []string
	TotalBans  int
	Candidates []schemas.ElementCandidate
	SearchText string
}

// HistoryWindow returns the renderer input for a job, bounded to the most
// recent window entries and the top failureN failure signatures. The one-shot
// candidate context is consumed by this call.
func HistoryWindow(j *Job, window, failureN int) HistoryInput {
	j.mu.Lock()
	entries := j.History
	if len(entries) > window {
		entries = entries[len(entries)-window:]
	}
	entriesCopy := append([]LogEntry(nil), entries...)
	totalBans := len(j.FailureMemory)
	j.mu.Unlock()

	in := HistoryInput{
		Entries:   entriesCopy,
		Failures:  j.TopFailures(failureN),
		TotalBans: totalBans,
	}
	text, cands := j.TakeCandidates()
	if len(cands) > 0 {
		in.Candidates = cands
		in.SearchText = text
	}
	return in
}

// RenderHistory formats the history block shown to the oracle. Pure: same
// input, same output, no job access.
func RenderHistory(in HistoryInput) string {
	var b strings.Builder

	for _, e := range in.Entries {
		fmt.Fprintf(&b, "Step %d [%s]", e.Step, e.Outcome)
		if e.Signature != "" {
			fmt.Fprintf(&b, " `%s`", e.Signature)
		}
		if e.Message != "" {
			b.WriteString(": ")
			b.WriteString(e.Message)
		}
		b.WriteByte('\n')
	}

	if len(in.Failures) > 0 {
		b.WriteString("\nFAILED ACTION SIGNATURES (do NOT repeat exactly):\n")
		for _, f := range in.Failures {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
		b.WriteString("RULE: never emit an action with an identical signature to one that failed. " +
			"Change selector, vary interaction type, or choose a different target. " +
			"Consider scrolling, a broader element search, or finishing if stuck.\n")
		if in.TotalBans > len(in.Failures) {
			fmt.Fprintf(&b, "  ... %d more failed signatures tracked\n", in.TotalBans-len(in.Failures))
		}
	}

	if len(in.Candidates) > 0 {
		b.WriteString("\nELEMENT SEARCH RESULTS FROM PREVIOUS STEP:\n")
		if in.SearchText != "" {
			fmt.Fprintf(&b, "  Search text: %q\n", in.SearchText)
		}
		visible, interactive := 0, 0
		for _, c := range in.Candidates {
			if c.Visible {
				visible++
			}
			if c.Interactive {
				interactive++
			}
		}
		fmt.Fprintf(&b, "  Matches: %d total, %d visible, %d interactive\n",
			len(in.Candidates), visible, interactive)
		for i, c := range in.Candidates {
			state := "hidden"
			if c.Visible {
				state = "visible"
			}
			kind := "static"
			if c.Interactive {
				kind = "interactive"
			}
			fmt.Fprintf(&b, "  Element %d: %s (%s, %s) selectors: %s\n",
				i+1, c.TagName, state, kind, strings.Join(c.Selectors, ", "))
		}
	}

	return b.String()
}
