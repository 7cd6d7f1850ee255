package core

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewProductionLogger("test-service")
	l.format = "text"
	l.SetOutput(&buf)

	l.Info("starting turn", map[string]interface{}{"session_id": "abc"})

	out := buf.String()
	assert.Contains(t, out, "starting turn")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "session_id=abc")
}

func TestProductionLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewProductionLogger("test-service")
	l.format = "json"
	l.SetOutput(&buf)

	l.Warn("step retried", map[string]interface{}{"step_id": "s1"})

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"step_id":"s1"`)
}

func TestProductionLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewProductionLogger("test-service")
	l.format = "text"
	l.SetOutput(&buf)

	comp := l.WithComponent("modelcore/raoi").(*ProductionLogger)
	comp.Info("think", nil)

	require.Contains(t, buf.String(), "[modelcore/raoi]")
}

func TestProductionLogger_DebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := NewProductionLogger("test-service")
	l.format = "text"
	l.level = "INFO"
	l.SetOutput(&buf)

	l.Debug("noisy", nil)
	assert.Empty(t, buf.String())
}

func TestProductionLogger_ErrorRateLimited(t *testing.T) {
	var buf bytes.Buffer
	l := NewProductionLogger("test-service")
	l.format = "text"
	l.errLimit = 1
	l.SetOutput(&buf)

	l.Error("first", nil)
	l.Error("second", nil)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "ERROR"))
}

func TestNoOpLogger_NeverPanics(t *testing.T) {
	var l ComponentAwareLogger = NoOpLogger{}
	l.Info("x", nil)
	l.WithComponent("y").Error("z", nil)
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	id, ok := RequestIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-1", id)

	_, ok = RequestIDFromContext(context.Background())
	assert.False(t, ok)
}
