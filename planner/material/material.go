// Package material implements the material domain planner: a bilingual
// keyword short-circuit over a builtin material library, falling back to
// the LLM gateway, and finally to a built-in steel default. Grounded on
// agent/planner/material_agent.py.
package material

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/planner"
	"github.com/modelcore/agent/prompts"
	"github.com/modelcore/agent/skills"
)

// Caller is the subset of ai.Gateway the material planner depends on.
type Caller interface {
	Call(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error)
}

// Agent is the material domain planner.
type Agent struct {
	gateway  Caller
	prompts  *prompts.Registry
	injector *skills.Injector
	logger   core.Logger
}

// New constructs a material Agent.
func New(gateway Caller, reg *prompts.Registry, injector *skills.Injector, logger core.Logger) *Agent {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Agent{gateway: gateway, prompts: reg, injector: injector, logger: logger}
}

// DefaultMaterialPlan is the built-in steel fallback used when the input is
// empty or the LLM parse fails, matching the original's DEFAULT_MATERIAL_PLAN.
var DefaultMaterialPlan = &planner.MaterialPlan{
	Materials: []planner.MaterialDefinition{
		{
			Name:  "mat1",
			Label: "Steel",
			Properties: []planner.MaterialProperty{
				{Name: "density", Value: 7850.0, Unit: "kg/m^3"},
				{Name: "thermalconductivity", Value: 44.5, Unit: "W/(m*K)"},
				{Name: "specificheat", Value: 475.0, Unit: "J/(kg*K)"},
				{Name: "youngsmodulus", Value: 200e9, Unit: "Pa"},
				{Name: "poissonsratio", Value: 0.3},
			},
		},
	},
	Assignments: []planner.MaterialAssignment{
		{MaterialName: "mat1", AssignAll: true},
	},
}

// builtinKeywords maps bilingual material mentions to a builtin library
// entry name, checked as a substring match before any LLM call.
var builtinKeywords = []struct {
	keyword string
	builtin string
}{
	{"铜", "Copper"},
	{"copper", "Copper"},
	{"钢", "Steel AISI 4340"},
	{"steel", "Steel AISI 4340"},
	{"铝", "Aluminum"},
	{"aluminum", "Aluminum"},
	{"aluminium", "Aluminum"},
	{"玻璃", "Glass (quartz)"},
	{"glass", "Glass (quartz)"},
	{"硅", "Silicon"},
	{"silicon", "Silicon"},
	{"空气", "Air"},
	{"air", "Air"},
	{"水", "Water"},
	{"water", "Water"},
	{"金", "Gold"},
	{"gold", "Gold"},
	{"银", "Silver"},
	{"silver", "Silver"},
	{"钛", "Titanium beta-21S"},
	{"titanium", "Titanium beta-21S"},
}

// Parse implements planner.Planner.
func (a *Agent) Parse(ctx context.Context, input, combinedContext string) (interface{}, error) {
	input = strings.TrimSpace(input)
	enhanced := input
	if combinedContext != "" {
		enhanced = combinedContext + "\n\nmaterial requirement for this step: " + input
	}

	if enhanced == "" {
		a.logger.InfoWithContext(ctx, "material input empty, using default steel", nil)
		return DefaultMaterialPlan, nil
	}

	lower := strings.ToLower(enhanced)
	for _, kw := range builtinKeywords {
		if strings.Contains(lower, kw.keyword) {
			a.logger.InfoWithContext(ctx, "material keyword matched builtin", map[string]interface{}{
				"keyword": kw.keyword,
				"builtin": kw.builtin,
			})
			return &planner.MaterialPlan{
				Materials: []planner.MaterialDefinition{
					{Name: "mat1", Label: kw.builtin, BuiltinName: kw.builtin},
				},
				Assignments: []planner.MaterialAssignment{
					{MaterialName: "mat1", AssignAll: true},
				},
			}, nil
		}
	}

	plan, err := a.parseViaLLM(ctx, input, enhanced)
	if err != nil {
		a.logger.WarnWithContext(ctx, "material LLM parse failed, using default steel", map[string]interface{}{
			"error": err.Error(),
		})
		return DefaultMaterialPlan, nil
	}
	return plan, nil
}

func (a *Agent) parseViaLLM(ctx context.Context, rawInput, enhanced string) (*planner.MaterialPlan, error) {
	prompt, err := a.prompts.Format("planner", "material", map[string]string{
		"query":   enhanced,
		"context": "",
		"skills":  "",
	})
	if err != nil {
		return nil, err
	}
	if a.injector != nil {
		prompt = a.injector.InjectIntoPrompt(ctx, rawInput, prompt)
	}

	resp, err := a.gateway.Call(ctx, prompt, &core.AIOptions{Temperature: 0.1})
	if err != nil {
		return nil, err
	}

	raw, err := planner.ExtractJSON(resp.Content)
	if err != nil {
		return nil, err
	}

	var plan planner.MaterialPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

var _ planner.Planner = (*Agent)(nil)
