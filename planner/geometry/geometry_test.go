package geometry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/planner"
	"github.com/modelcore/agent/prompts"
)

type stubCaller struct {
	content string
	err     error
}

func (s stubCaller) Call(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.AIResponse{Content: s.content}, nil
}

func TestParse_ValidReplyProducesGeometryPlan(t *testing.T) {
	reply := `{"shapes": [{"type": "rectangle", "parameters": {"width": 10, "height": 5}}], "units": "mm"}`
	a := New(stubCaller{content: reply}, prompts.NewRegistry(""), nil, nil)

	result, err := a.Parse(context.Background(), "a 10x5 rectangle", "")
	require.NoError(t, err)

	plan, ok := result.(*planner.GeometryPlan)
	require.True(t, ok)
	assert.Len(t, plan.Shapes, 1)
	assert.Equal(t, "mm", plan.Units)
	assert.Equal(t, 2, plan.Dimension)
}

func TestParse_EmptyShapesFailsSchemaValidation(t *testing.T) {
	a := New(stubCaller{content: `{"shapes": []}`}, prompts.NewRegistry(""), nil, nil)
	_, err := a.Parse(context.Background(), "nothing", "")
	assert.Error(t, err)
}

func TestParse_GatewayErrorPropagates(t *testing.T) {
	a := New(stubCaller{err: assertErr{}}, prompts.NewRegistry(""), nil, nil)
	_, err := a.Parse(context.Background(), "a circle", "")
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "endpoint down" }
