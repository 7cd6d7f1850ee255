package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcore/agent/backend/fake"
	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/planner"
	"github.com/modelcore/agent/planner/geometry"
	"github.com/modelcore/agent/prompts"
	"github.com/modelcore/agent/raoi"
	"github.com/modelcore/agent/router"
	"github.com/modelcore/agent/session"
)

// scriptedGateway routes each call by matching a substring against the
// rendered prompt, so one fake stands in for the router, decompose,
// geometry, qa, and summary prompts a turn can touch.
type scriptedGateway struct {
	routes []route
}

type route struct {
	contains string
	reply    string
}

func (s *scriptedGateway) Call(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error) {
	for _, r := range s.routes {
		if strings.Contains(prompt, r.contains) {
			return &core.AIResponse{Content: r.reply}, nil
		}
	}
	return &core.AIResponse{Content: ""}, nil
}

func newHarness(t *testing.T, gw *scriptedGateway) *Orchestrator {
	t.Helper()
	reg := prompts.NewRegistry("")
	geo := geometry.New(gw, reg, nil, nil)
	plans := planner.New(gw, reg, map[planner.Agent]planner.Planner{planner.Geometry: geo}, nil)

	backend := fake.New(t.TempDir())
	ctrl := raoi.New(backend, gw, reg, nil, nil)

	rt := router.New(gw, nil)
	store, err := session.NewFileStore(t.TempDir())
	require.NoError(t, err)

	return New(rt, plans, ctrl, gw, reg, nil, store, nil, nil)
}

func TestHandleTurn_QARouteNeverStartsAPlan(t *testing.T) {
	gw := &scriptedGateway{routes: []route{
		{contains: "Classify the following user message", reply: "qa"},
		{contains: "Answer the following question", reply: "Hello! How can I help you model something today?"},
	}}
	o := newHarness(t, gw)

	reply := o.HandleTurn(context.Background(), "session-qa", "hello")
	assert.True(t, reply.OK)
	assert.Contains(t, reply.Message, "help")
	assert.Empty(t, reply.ModelPath)
}

func TestHandleTurn_GeometryOnlyCompletesAndReturnsModelPath(t *testing.T) {
	gw := &scriptedGateway{routes: []route{
		{contains: "Classify the following user message", reply: "technical"},
		{contains: "Decompose the following request", reply: `{"steps": [{"agent_type": "geometry", "description": "build a rectangle", "input_snippet": "1m x 0.5m rectangle"}]}`},
		{contains: "You are the geometry planner", reply: `{"model_name": "Plate", "units": "m", "dimension": 2, "shapes": [{"type": "rectangle", "parameters": {"width": 1, "height": 0.5}}]}`},
		{contains: "Summarize the outcome", reply: "Built a 1m by 0.5m rectangle."},
	}}
	o := newHarness(t, gw)

	reply := o.HandleTurn(context.Background(), "session-geo", "Build a 1 m x 0.5 m rectangle, that's it")
	require.True(t, reply.OK)
	assert.Contains(t, reply.Message, "rectangle")
	assert.NotEmpty(t, reply.ModelPath)
}

// A geometry reply with no shapes fails planner.Parse, so the orchestrator
// plans from the planner's default geometry plan instead. That default also
// has no shapes, so the backend rejects every attempt; the step exhausts its
// retry budget and is skipped, and the single-step task still reaches
// Completed. This exercises the skip-to-completion path, not a hard RAOI
// failure: a genuine fatal error (e.g. "has no attribute") would instead set
// task.Status to Failed and take HandleTurn's error branch.
func TestHandleTurn_GeometryNoShapesStillReachesCompletionViaSkip(t *testing.T) {
	gw := &scriptedGateway{routes: []route{
		{contains: "Classify the following user message", reply: "technical"},
		{contains: "Decompose the following request", reply: `{"steps": [{"agent_type": "geometry", "description": "build something", "input_snippet": "a shape"}]}`},
		{contains: "You are the geometry planner", reply: `{"model_name": "Empty", "shapes": []}`},
		{contains: "Summarize the outcome", reply: "Could not build the requested geometry."},
	}}
	o := newHarness(t, gw)

	reply := o.HandleTurn(context.Background(), "session-geo-fail", "build a thing")
	require.True(t, reply.OK)
}

// A fatal backend error (one of the "has no attribute"/"cannot find" style
// messages from iterate.go's fatal patterns) should stop the task
// immediately with Failed, taking HandleTurn's error branch.
func TestHandleTurn_FatalBackendErrorProducesFailureReply(t *testing.T) {
	gw := &scriptedGateway{routes: []route{
		{contains: "Classify the following user message", reply: "technical"},
		{contains: "Decompose the following request", reply: `{"steps": [{"agent_type": "geometry", "description": "build something odd", "input_snippet": "a weird shape"}]}`},
		{contains: "You are the geometry planner", reply: `{"model_name": "Weird", "units": "m", "dimension": 2, "shapes": [{"type": "widget has no attribute mesh", "parameters": {}}]}`},
		{contains: "Summarize the outcome", reply: "The geometry build failed."},
	}}
	o := newHarness(t, gw)

	reply := o.HandleTurn(context.Background(), "session-geo-fatal", "build something odd")
	require.False(t, reply.OK)
	assert.Contains(t, reply.Message, "geometry")
}
