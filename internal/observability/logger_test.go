// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/webpilot/internal/config"
)

type syncBuffer struct {
	bytes.Buffer
}

func (b *syncBuffer) Sync() error { return nil }

func TestInitializeWritesToConsole(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "webpilot-test",
	}, zapcore.Lock(buf))

	GetLogger().Named("registry").Info("job submitted")

	out := buf.String()
	assert.Contains(t, out, "job submitted")
	assert.Contains(t, out, "webpilot-test.registry.")
	assert.Contains(t, out, "INFO")
}

func TestInitializeRunsOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "console"}, zapcore.Lock(first))
	Initialize(config.LoggerConfig{Level: "info", Format: "console"}, zapcore.Lock(second))

	GetLogger().Info("only the first writer sees this")
	assert.True(t, strings.Contains(first.String(), "only the first writer"))
	assert.Empty(t, second.String())
}

func TestGetLoggerFallsBackBeforeInit(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotNil(t, GetLogger())
}
