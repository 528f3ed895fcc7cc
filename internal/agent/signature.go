// File: internal/agent/signature.go
package agent

import (
	"strings"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// maxSignatureField caps the length of a single signature component so that
// signatures stay compact even when the oracle proposes very long text.
const maxSignatureField = 80

// ActionSignature builds a normalized dedup key for a proposed action.
// Identical distinguishing fields always yield an identical signature, and a
// structurally empty action collapses to "invalid".
func ActionSignature(action schemas.Action) string {
	if action.Type == "" {
		return "invalid"
	}
	parts := []string{string(action.Type)}
	for _, f := range []struct {
		key string
		val string
	}{
		{"selector", action.Selector},
		{"text", action.Text},
		{"key", action.Key},
		{"input_type", action.InputType},
		{"prompt", action.Prompt},
	} {
		v := strings.TrimSpace(f.val)
		if v == "" {
			continue
		}
		parts = append(parts, f.key+"="+truncateRunes(v, maxSignatureField))
	}
	return strings.Join(parts, "|")
}

// truncateRunes shortens s to at most limit runes, marking the cut with an
// ellipsis. Counting runes rather than bytes keeps multibyte text intact.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
