// File: internal/agent/supervisor.go
package agent

import (
	"fmt"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// Verdict is the supervisor's decision for one completed cycle.
type Verdict struct {
	Stop   bool
	Reason string
}

// Supervise applies the termination policy in fixed precedence order: an
// explicit finish wins, then result saturation, then step budget exhaustion.
// Pure function, evaluated exactly once per cycle after execution.
func Supervise(lastAction schemas.Action, resultCount, targetCount, step, stepBudget int) Verdict {
	if lastAction.Type == schemas.ActionFinish {
		reason := lastAction.Reason
		if reason == "" {
			reason = "agent finished"
		}
		return Verdict{Stop: true, Reason: reason}
	}
	if targetCount > 0 && resultCount >= targetCount {
		return Verdict{Stop: true, Reason: fmt.Sprintf("target reached: collected %d/%d items", resultCount, targetCount)}
	}
	if step > stepBudget {
		return Verdict{Stop: true, Reason: "step budget exhausted"}
	}
	return Verdict{}
}
