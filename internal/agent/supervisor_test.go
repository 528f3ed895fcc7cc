// File: internal/agent/supervisor_test.go
package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

func TestSuperviseFinishWins(t *testing.T) {
	v := Supervise(schemas.FinishAction("done shopping"), 10, 3, 200, 100)
	assert.True(t, v.Stop)
	assert.Equal(t, "done shopping", v.Reason)
}

func TestSuperviseTargetReached(t *testing.T) {
	v := Supervise(schemas.Action{Type: schemas.ActionExtract}, 3, 3, 4, 100)
	assert.True(t, v.Stop)
	assert.Contains(t, v.Reason, "target reached")
}

func TestSuperviseBudgetExhausted(t *testing.T) {
	v := Supervise(schemas.Action{Type: schemas.ActionClick, Selector: "#a"}, 0, 3, 101, 100)
	assert.True(t, v.Stop)
	assert.Equal(t, "step budget exhausted", v.Reason)

	// Budget boundary is strict: step == budget continues.
	v = Supervise(schemas.Action{Type: schemas.ActionClick, Selector: "#a"}, 0, 3, 100, 100)
	assert.False(t, v.Stop)
}

func TestSuperviseContinue(t *testing.T) {
	v := Supervise(schemas.Action{Type: schemas.ActionScroll}, 1, 3, 5, 100)
	assert.False(t, v.Stop)
	assert.Empty(t, v.Reason)
}
