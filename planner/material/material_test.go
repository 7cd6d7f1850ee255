package material

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
	calls   int
}

func (s *stubCaller) Call(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &core.AIResponse{Content: s.content}, nil
}

func TestParse_EmptyInputUsesDefaultSteel(t *testing.T) {
	c := &stubCaller{}
	a := New(c, prompts.NewRegistry(""), nil, nil)

	result, err := a.Parse(context.Background(), "", "")
	require.NoError(t, err)
	assert.Same(t, DefaultMaterialPlan, result.(*planner.MaterialPlan))
	assert.Equal(t, 0, c.calls)
}

func TestParse_KeywordMatchShortCircuitsLLM(t *testing.T) {
	c := &stubCaller{}
	a := New(c, prompts.NewRegistry(""), nil, nil)

	result, err := a.Parse(context.Background(), "make it out of copper", "")
	require.NoError(t, err)
	plan := result.(*planner.MaterialPlan)
	assert.Equal(t, "Copper", plan.Materials[0].BuiltinName)
	assert.Equal(t, 0, c.calls)
}

func TestParse_BilingualKeywordMatches(t *testing.T) {
	c := &stubCaller{}
	a := New(c, prompts.NewRegistry(""), nil, nil)

	result, err := a.Parse(context.Background(), "用铝做这个零件", "")
	require.NoError(t, err)
	plan := result.(*planner.MaterialPlan)
	assert.Equal(t, "Aluminum", plan.Materials[0].BuiltinName)
}

func TestParse_NoKeywordCallsLLM(t *testing.T) {
	c := &stubCaller{content: `{"materials": [{"name": "mat1", "label": "Titanium alloy"}], "assignments": [{"material_name": "mat1", "assign_all": true}]}`}
	a := New(c, prompts.NewRegistry(""), nil, nil)

	result, err := a.Parse(context.Background(), "use a lightweight aerospace alloy", "")
	require.NoError(t, err)
	plan := result.(*planner.MaterialPlan)
	assert.Equal(t, "Titanium alloy", plan.Materials[0].Label)
	assert.Equal(t, 1, c.calls)
}

func TestParse_LLMFailureFallsBackToDefaultSteel(t *testing.T) {
	c := &stubCaller{err: assertErr{}}
	a := New(c, prompts.NewRegistry(""), nil, nil)

	result, err := a.Parse(context.Background(), "use something exotic and unlisted", "")
	require.NoError(t, err)
	assert.Same(t, DefaultMaterialPlan, result.(*planner.MaterialPlan))
}

type assertErr struct{}

func (assertErr) Error() string { return "endpoint down" }
