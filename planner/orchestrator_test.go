package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/prompts"
)

type stubGateway struct {
	content string
	err     error
}

func (s stubGateway) Call(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.AIResponse{Content: s.content}, nil
}

type stubPlanner struct {
	result interface{}
	err    error
}

func (s stubPlanner) Parse(ctx context.Context, input, combinedContext string) (interface{}, error) {
	return s.result, s.err
}

func TestDecompose_FallsBackToGeometryOnUnparsableReply(t *testing.T) {
	o := New(stubGateway{content: "not json at all"}, prompts.NewRegistry(""), nil, nil)
	plan, err := o.Decompose(context.Background(), "build a bracket")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, Geometry, plan.Steps[0].AgentType)
}

func TestDecompose_FallsBackOnGatewayError(t *testing.T) {
	o := New(stubGateway{err: assertErr{}}, prompts.NewRegistry(""), nil, nil)
	plan, err := o.Decompose(context.Background(), "build a bracket")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, Geometry, plan.Steps[0].AgentType)
}

func TestDecompose_TruncatesToGeometryWhenUserOnlyMentionsGeometry(t *testing.T) {
	reply := `{"steps": [
		{"agent_type": "geometry", "description": "shape", "input_snippet": "a plate"},
		{"agent_type": "material", "description": "steel", "input_snippet": "steel"},
		{"agent_type": "study", "description": "solve", "input_snippet": "solve it"}
	]}`
	o := New(stubGateway{content: reply}, prompts.NewRegistry(""), nil, nil)
	plan, err := o.Decompose(context.Background(), "just draw a plate")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, Geometry, plan.Steps[0].AgentType)
}

func TestDecompose_TruncatesToMaxMentionedScope(t *testing.T) {
	reply := `{"steps": [
		{"agent_type": "geometry", "description": "shape", "input_snippet": "a plate"},
		{"agent_type": "material", "description": "steel", "input_snippet": "steel"},
		{"agent_type": "physics", "description": "heat", "input_snippet": "heat transfer"},
		{"agent_type": "study", "description": "solve", "input_snippet": "solve it"}
	]}`
	o := New(stubGateway{content: reply}, prompts.NewRegistry(""), nil, nil)
	plan, err := o.Decompose(context.Background(), "build a steel plate")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, Geometry, plan.Steps[0].AgentType)
	assert.Equal(t, Material, plan.Steps[1].AgentType)
}

func TestRun_AppliesDefaultAndContinuesOnPlannerFailure(t *testing.T) {
	planners := map[Agent]Planner{
		Geometry: stubPlanner{result: &GeometryPlan{Shapes: []GeometryShape{{Type: "circle"}}, Dimension: 2}},
		Material: stubPlanner{err: assertErr{}},
	}
	o := New(stubGateway{content: `{"steps": [
		{"agent_type": "geometry", "input_snippet": "a circle"},
		{"agent_type": "material", "input_snippet": "steel"}
	]}`}, prompts.NewRegistry(""), planners, nil)

	task, shared, serial, err := o.Run(context.Background(), "build a steel circle", "", nil)
	require.NoError(t, err)
	require.Len(t, serial.Steps, 2)
	require.NotNil(t, task.Geometry)
	require.NotNil(t, task.Material)
	assert.Equal(t, "Steel", task.Material.Materials[0].Label)
	require.Len(t, shared.ExecutionHistory, 2)
	assert.True(t, shared.ExecutionHistory[0].Success)
	assert.False(t, shared.ExecutionHistory[1].Success)
}

func TestRun_MissingPlannerIsTreatedAsNotImplemented(t *testing.T) {
	planners := map[Agent]Planner{
		Geometry: stubPlanner{result: &GeometryPlan{Shapes: []GeometryShape{{Type: "circle"}}, Dimension: 2}},
	}
	o := New(stubGateway{content: `{"steps": [
		{"agent_type": "geometry", "input_snippet": "a circle"},
		{"agent_type": "study", "input_snippet": "solve it"}
	]}`}, prompts.NewRegistry(""), planners, nil)

	task, shared, _, err := o.Run(context.Background(), "build and solve a circle, full workflow", "", nil)
	require.NoError(t, err)
	require.NotNil(t, task.Study)
	assert.Empty(t, task.Study.Studies)
	assert.False(t, shared.ExecutionHistory[1].Success)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
