package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharedContext_GetContextForAgentExcludesOwnHistory(t *testing.T) {
	ctx := NewSharedContext("build a bracket")
	ctx.AppendSuccess(1, Geometry, "2 shapes, 1 operation, 2D", nil)
	ctx.AppendFailure(2, Material, "no material found")

	geomView := ctx.GetContextForAgent(Geometry)
	assert.NotContains(t, geomView, "geometry:")
	assert.Contains(t, geomView, "material: failed")

	materialView := ctx.GetContextForAgent(Material)
	assert.Contains(t, materialView, "geometry: success")
	assert.NotContains(t, materialView, "material: failed")
	assert.Contains(t, materialView, "most recent error: no material found")
}

func TestSharedContext_EmptyHistoryHasPlaceholderText(t *testing.T) {
	ctx := NewSharedContext("anything")
	assert.Equal(t, "(no other agent has run yet.)", ctx.GetContextForAgent(Geometry))
}
