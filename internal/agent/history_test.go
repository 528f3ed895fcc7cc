// File: internal/agent/history_test.go
package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

func TestRenderHistoryEntries(t *testing.T) {
	out := RenderHistory(HistoryInput{
		Entries: []LogEntry{
			{Step: 1, Outcome: OutcomeSuccess, Signature: "click|selector=#go", Message: "executed successfully"},
			{Step: 2, Outcome: OutcomeFailure, Signature: "click|selector=#missing", Message: `error="timeout"`},
		},
	})
	assert.Contains(t, out, "Step 1 [success] `click|selector=#go`")
	assert.Contains(t, out, "Step 2 [failure] `click|selector=#missing`")
}

func TestRenderHistoryFailureWarnings(t *testing.T) {
	out := RenderHistory(HistoryInput{
		Failures:  []string{"click|selector=#missing (failed 3x)"},
		TotalBans: 5,
	})
	assert.Contains(t, out, "FAILED ACTION SIGNATURES")
	assert.Contains(t, out, "click|selector=#missing (failed 3x)")
	assert.Contains(t, out, "4 more failed signatures tracked")
}

func TestRenderHistoryCandidates(t *testing.T) {
	out := RenderHistory(HistoryInput{
		SearchText: "Add to cart",
		Candidates: []schemas.ElementCandidate{
			{TagName: "button", Selectors: []string{"#add", "button.cart"}, Visible: true, Interactive: true},
			{TagName: "span", Selectors: []string{"span.label"}},
		},
	})
	assert.Contains(t, out, "ELEMENT SEARCH RESULTS")
	assert.Contains(t, out, `"Add to cart"`)
	assert.Contains(t, out, "2 total, 1 visible, 1 interactive")
	assert.Contains(t, out, "button (visible, interactive) selectors: #add, button.cart")
}

func TestHistoryWindowBoundsAndConsumesCandidates(t *testing.T) {
	job := NewJob("query", "https://example.com", 3, 100)
	for i := 0; i < 12; i++ {
		job.AppendLog(OutcomeInfo, "", "entry")
		job.IncrementStep()
	}
	job.SetCandidates("Checkout", []schemas.ElementCandidate{{TagName: "a", Selectors: []string{"#checkout"}}})

	in := HistoryWindow(job, 8, 8)
	require.Len(t, in.Entries, 8)
	assert.Equal(t, 5, in.Entries[0].Step)
	require.Len(t, in.Candidates, 1)

	// One-shot: a second render no longer sees the candidates.
	in = HistoryWindow(job, 8, 8)
	assert.Empty(t, in.Candidates)
}

func TestTopFailuresOrdering(t *testing.T) {
	job := NewJob("query", "https://example.com", 3, 100)
	job.RecordFailure("click|selector=#a")
	job.RecordFailure("click|selector=#b")
	job.RecordFailure("click|selector=#b")

	top := job.TopFailures(8)
	require.Len(t, top, 2)
	assert.Equal(t, "click|selector=#b (failed 2x)", top[0])
	assert.Equal(t, "click|selector=#a (failed 1x)", top[1])
}
