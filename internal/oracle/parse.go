// File: internal/oracle/parse.go
package oracle

import (
	"regexp"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonBlockRegex pulls a JSON object out of a response that may wrap it in a
// markdown fence or surrounding prose.
var jsonBlockRegex = regexp.MustCompile("(?s)(?:```json\\s*|)(\\{.*\\})(?:```|)")

// rawProposal mirrors the model's reply shape with the action left raw so
// decode coercion can run on it.
type rawProposal struct {
	Thought string              `json:"thought"`
	Action  jsoniter.RawMessage `json:"action"`
}

// ParseProposal turns a model reply into a proposal. It never fails: any
// level of malformation coerces the action to a diagnostic finish, so the
// control loop always receives something executable.
func ParseProposal(response string) schemas.Proposal {
	response = strings.TrimSpace(response)

	jsonString := response
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		jsonString = matches[1]
	}

	var raw rawProposal
	if err := json.Unmarshal([]byte(jsonString), &raw); err != nil {
		return schemas.Proposal{
			Thought: "unparseable oracle response",
			Action:  schemas.FinishAction("oracle response was not valid JSON: " + err.Error()),
		}
	}
	if len(raw.Action) == 0 {
		return schemas.Proposal{
			Thought: raw.Thought,
			Action:  schemas.FinishAction("oracle response missing action"),
		}
	}
	return schemas.Proposal{
		Thought: raw.Thought,
		Action:  schemas.DecodeAction([]byte(raw.Action)),
	}
}

// truncateToMaxRunes shortens s to at most maxRunes runes, preserving UTF-8
// boundaries.
func truncateToMaxRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
