// Package geometry implements the mandatory domain planner: every serial
// plan must be able to produce a geometry sub-plan, grounded on
// agent/planner/geometry_agent.py.
package geometry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/planner"
	"github.com/modelcore/agent/prompts"
	"github.com/modelcore/agent/skills"
)

// Caller is the subset of ai.Gateway the geometry planner depends on.
type Caller interface {
	Call(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error)
}

// Agent is the geometry domain planner.
type Agent struct {
	gateway  Caller
	prompts  *prompts.Registry
	injector *skills.Injector
	logger   core.Logger
}

// New constructs a geometry Agent. injector may be nil, in which case the
// prompt is sent without a retrieved-skills block.
func New(gateway Caller, reg *prompts.Registry, injector *skills.Injector, logger core.Logger) *Agent {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Agent{gateway: gateway, prompts: reg, injector: injector, logger: logger}
}

// Parse implements planner.Planner.
func (a *Agent) Parse(ctx context.Context, input, combinedContext string) (interface{}, error) {
	enhanced := input
	if combinedContext != "" {
		enhanced = combinedContext + "\n\ncurrent requirement: " + input
	}

	prompt, err := a.prompts.Format("planner", "geometry", map[string]string{
		"query":   enhanced,
		"context": combinedContext,
		"skills":  "",
	})
	if err != nil {
		return nil, fmt.Errorf("geometry: build prompt: %w", err)
	}
	if a.injector != nil {
		prompt = a.injector.InjectIntoPrompt(ctx, input, prompt)
	}

	resp, err := a.gateway.Call(ctx, prompt, &core.AIOptions{Temperature: 0.1})
	if err != nil {
		return nil, fmt.Errorf("geometry: gateway call: %w", err)
	}

	raw, err := planner.ExtractJSON(resp.Content)
	if err != nil {
		return nil, err
	}

	var plan planner.GeometryPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("geometry: %w: %v", core.ErrInvalidJSON, err)
	}
	if len(plan.Shapes) == 0 {
		return nil, fmt.Errorf("geometry: %w: at least one shape is required", core.ErrSchemaInvalid)
	}
	if plan.Units == "" {
		plan.Units = "m"
	}
	if plan.ModelName == "" {
		plan.ModelName = "geometry_model"
	}
	if plan.Dimension == 0 {
		plan.Dimension = 2
	}

	a.logger.InfoWithContext(ctx, "geometry plan parsed", map[string]interface{}{
		"shapes": len(plan.Shapes),
	})
	return &plan, nil
}

var _ planner.Planner = (*Agent)(nil)
