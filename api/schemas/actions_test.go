// -- api/schemas/actions_test.go --
package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeActionWellFormed(t *testing.T) {
	raw := json.RawMessage(`{"type":"fill","selector":"#email","text":"a@b.c"}`)
	action := DecodeAction(raw)
	assert.Equal(t, ActionFill, action.Type)
	assert.Equal(t, "#email", action.Selector)
	assert.Equal(t, "a@b.c", action.Text)
}

func TestDecodeActionCoercion(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"wrong shape", `[1,2,3]`},
		{"missing type", `{"selector":"#x"}`},
		{"unknown tag", `{"type":"levitate"}`},
		{"click without selector", `{"type":"click"}`},
		{"press without key", `{"type":"press","selector":"#x"}`},
		{"search without text", `{"type":"extract_correct_selector_using_text"}`},
		{"input without prompt", `{"type":"request_user_input","input_type":"otp"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			action := DecodeAction(json.RawMessage(tc.raw))
			assert.Equal(t, ActionFinish, action.Type)
			assert.NotEmpty(t, action.Reason)
		})
	}
}

func TestDecodeActionExtractWithItems(t *testing.T) {
	raw := json.RawMessage(`{"type":"extract","items":[{"title":"a","url":"/a"}]}`)
	action := DecodeAction(raw)
	assert.Equal(t, ActionExtract, action.Type)
	assert.Len(t, action.Items, 1)
	assert.Equal(t, "/a", action.Items[0]["url"])
}

func TestTelemetryEventKindTerminal(t *testing.T) {
	assert.True(t, EventJobDone.Terminal())
	assert.True(t, EventJobFailed.Terminal())
	assert.False(t, EventAgentStep.Terminal())
}
