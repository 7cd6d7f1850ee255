package physics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/modelcore/agent/core"
)

func TestParse_AlwaysReturnsNotImplemented(t *testing.T) {
	_, err := New().Parse(context.Background(), "add a heat transfer field", "")
	assert.True(t, errors.Is(err, core.ErrNotImplemented))
}
