// -- api/schemas/actions.go --
package schemas

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType tags the closed set of actions the oracle may propose. The wire
// names match what the decision model is prompted to emit.
type ActionType string

const (
	ActionClick             ActionType = "click"
	ActionFill              ActionType = "fill"
	ActionPress             ActionType = "press"
	ActionScroll            ActionType = "scroll"
	ActionExtract           ActionType = "extract"
	ActionSearchElement     ActionType = "extract_correct_selector_using_text"
	ActionDismissByText     ActionType = "dismiss_popup_using_text"
	ActionRequestHumanInput ActionType = "request_user_input"
	ActionFinish            ActionType = "finish"
)

// ExtractedItem is one unit of extracted page data.
type ExtractedItem map[string]string

// Action is the tagged union of everything the oracle can ask for. Which
// fields are meaningful depends on Type; Validate enforces the per-type
// requirements.
type Action struct {
	Type     ActionType      `json:"type"`
	Selector string          `json:"selector,omitempty"`
	Text     string          `json:"text,omitempty"`
	Key      string          `json:"key,omitempty"`
	Items    []ExtractedItem `json:"items,omitempty"`

	// Human input request fields.
	InputType string `json:"input_type,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	Sensitive bool   `json:"is_sensitive,omitempty"`

	// Finish fields.
	Reason string `json:"reason,omitempty"`
}

// Proposal is one full oracle reply: the model's reasoning plus exactly one
// action.
type Proposal struct {
	Thought string `json:"thought"`
	Action  Action `json:"action"`
}

// Usage is the token cost of a single oracle call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// FinishAction builds a terminal action carrying a diagnostic reason.
func FinishAction(reason string) Action {
	return Action{Type: ActionFinish, Reason: reason}
}

// Validate enforces the per-type required fields of the tagged union.
func (a Action) Validate() error {
	switch a.Type {
	case ActionClick:
		if strings.TrimSpace(a.Selector) == "" {
			return fmt.Errorf("click action requires a selector")
		}
	case ActionFill:
		if strings.TrimSpace(a.Selector) == "" {
			return fmt.Errorf("fill action requires a selector")
		}
	case ActionPress:
		if strings.TrimSpace(a.Selector) == "" || strings.TrimSpace(a.Key) == "" {
			return fmt.Errorf("press action requires a selector and a key")
		}
	case ActionSearchElement, ActionDismissByText:
		if strings.TrimSpace(a.Text) == "" {
			return fmt.Errorf("%s action requires text", a.Type)
		}
	case ActionRequestHumanInput:
		if strings.TrimSpace(a.Prompt) == "" {
			return fmt.Errorf("request_user_input action requires a prompt")
		}
	case ActionScroll, ActionExtract, ActionFinish:
		// No required fields.
	case "":
		return fmt.Errorf("action type is missing")
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

// DecodeAction parses a raw oracle action. It never fails: malformed input,
// an unknown tag or a missing required field all coerce deterministically to
// a diagnostic finish so the control loop always has something to execute.
func DecodeAction(raw json.RawMessage) Action {
	var action Action
	if err := json.Unmarshal(raw, &action); err != nil {
		return FinishAction(fmt.Sprintf("oracle returned undecodable action: %v", err))
	}
	if err := action.Validate(); err != nil {
		return FinishAction(fmt.Sprintf("oracle returned invalid action: %v", err))
	}
	return action
}
