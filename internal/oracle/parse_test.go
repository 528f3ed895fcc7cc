// File: internal/oracle/parse_test.go
package oracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

func TestParseProposalPlainJSON(t *testing.T) {
	p := ParseProposal(`{"thought":"search first","action":{"type":"fill","selector":"#q","text":"shoes"}}`)
	assert.Equal(t, "search first", p.Thought)
	assert.Equal(t, schemas.ActionFill, p.Action.Type)
	assert.Equal(t, "#q", p.Action.Selector)
}

func TestParseProposalMarkdownFence(t *testing.T) {
	p := ParseProposal("Sure, here is the action:\n```json\n{\"thought\":\"dismiss the banner\",\"action\":{\"type\":\"dismiss_popup_using_text\",\"text\":\"Accept All\"}}\n```")
	assert.Equal(t, schemas.ActionDismissByText, p.Action.Type)
	assert.Equal(t, "Accept All", p.Action.Text)
}

func TestParseProposalGarbageCoercesToFinish(t *testing.T) {
	p := ParseProposal("I cannot help with that.")
	assert.Equal(t, schemas.ActionFinish, p.Action.Type)
	assert.Contains(t, p.Action.Reason, "not valid JSON")
}

func TestParseProposalMissingActionCoercesToFinish(t *testing.T) {
	p := ParseProposal(`{"thought":"hmm"}`)
	assert.Equal(t, schemas.ActionFinish, p.Action.Type)
	assert.Equal(t, "hmm", p.Thought)
}

func TestParseProposalInvalidActionCoercesToFinish(t *testing.T) {
	p := ParseProposal(`{"thought":"click it","action":{"type":"click"}}`)
	assert.Equal(t, schemas.ActionFinish, p.Action.Type)
	assert.Contains(t, p.Action.Reason, "selector")
}

func TestTruncateToMaxRunes(t *testing.T) {
	s := strings.Repeat("é", 10)
	assert.Equal(t, s, truncateToMaxRunes(s, 10))
	assert.Equal(t, strings.Repeat("é", 4), truncateToMaxRunes(s, 4))
}

func TestBuildDecisionPromptEmptyHistory(t *testing.T) {
	out := buildDecisionPrompt("obj", "https://x", "", "<html/>")
	assert.Contains(t, out, "(no actions taken yet)")
}
