package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/prompts"
)

// Caller is the subset of ai.Gateway the Orchestrator depends on, for
// Decompose's own LLM call.
type Caller interface {
	Call(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error)
}

// Orchestrator decomposes a user request into a serial plan, runs the four
// domain planners in order, and maintains the A2A SharedContext between
// them. Grounded on agent/planner/orchestrator.py, and on
// orchestration/orchestrator.go's generateExecutionPlan → validatePlan →
// regeneratePlan shape for the decompose step (here there is no schema
// validation to regenerate against — the JSON-parse failure path itself is
// the "regeneration", falling back to a single geometry step).
type Orchestrator struct {
	gateway  Caller
	prompts  *prompts.Registry
	logger   core.Logger
	planners map[Agent]Planner
}

// New constructs an Orchestrator. planners maps agent kind to its
// implementation; a missing entry behaves exactly like
// core.ErrNotImplemented.
func New(gateway Caller, reg *prompts.Registry, planners map[Agent]Planner, logger core.Logger) *Orchestrator {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Orchestrator{gateway: gateway, prompts: reg, planners: planners, logger: logger}
}

// decomposeStep mirrors the shape of one LLM-proposed step before it is
// validated into a PlanStep.
type decomposeStep struct {
	AgentType    string `json:"agent_type"`
	Description  string `json:"description"`
	InputSnippet string `json:"input_snippet"`
}

type decomposeResponse struct {
	Steps           []decomposeStep `json:"steps"`
	PlanDescription string          `json:"plan_description"`
}

// Decompose asks the LLM gateway for a JSON list of steps, falls back to a
// single geometry-only step on parse failure or an empty list, then applies
// intent filtering per spec.md §4.8.
func (o *Orchestrator) Decompose(ctx context.Context, userInput string) (SerialPlan, error) {
	fallback := SerialPlan{Steps: []PlanStep{{StepIndex: 1, AgentType: Geometry, Description: "geometry modeling", InputSnippet: userInput}}}

	prompt, err := o.prompts.Format("planner", "decompose", map[string]string{"query": userInput})
	if err != nil {
		return fallback, nil
	}

	resp, err := o.gateway.Call(ctx, prompt, &core.AIOptions{Temperature: 0.1})
	if err != nil {
		o.logger.WarnWithContext(ctx, "decompose: gateway call failed, falling back to geometry-only plan", map[string]interface{}{
			"error": err.Error(),
		})
		return filterByIntent(userInput, fallback), nil
	}

	raw, err := ExtractJSON(resp.Content)
	if err != nil {
		o.logger.WarnWithContext(ctx, "decompose: could not extract JSON, falling back to geometry-only plan", map[string]interface{}{
			"error": err.Error(),
		})
		return filterByIntent(userInput, fallback), nil
	}

	var decoded decomposeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return filterByIntent(userInput, fallback), nil
	}

	var steps []PlanStep
	for _, s := range decoded.Steps {
		at := Agent(strings.ToLower(strings.TrimSpace(s.AgentType)))
		if !validAgent(at) {
			continue
		}
		steps = append(steps, PlanStep{
			StepIndex:    len(steps) + 1,
			AgentType:    at,
			Description:  s.Description,
			InputSnippet: s.InputSnippet,
		})
	}
	if len(steps) == 0 {
		steps = fallback.Steps
	}

	plan := SerialPlan{Steps: steps, PlanDescription: decoded.PlanDescription}
	return filterByIntent(userInput, plan), nil
}

func validAgent(a Agent) bool {
	switch a {
	case Geometry, Material, Physics, Study:
		return true
	}
	return false
}

// Keyword classes for post-decomposition intent filtering. Bilingual
// (Chinese/English) per original_source/agent/planner/orchestrator.py.
var (
	materialKeywords  = []string{"材料", "赋", "钢材", "铜", "铝", "属性", "分配", "material", "steel", "copper", "aluminum"}
	physicsKeywords   = []string{"物理场", "传热", "热传导", "静电场", "电场", "力学", "流体", "电磁", "physics", "heat", "solid"}
	studyKeywords     = []string{"研究", "求解", "仿真", "稳态", "瞬态", "计算", "算一下", "完整", "全流程", "study", "solve"}
	scopeLimitPhrases = []string{
		"就行", "就可以", "就好", "只要", "仅", "只画", "只建", "建个", "画个", "就结束", "只建几何", "只创建几何", "仅几何",
		"just", "only",
	}
)

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// maxScope returns the furthest agent kind the user input entitles the
// plan to reach, per the geometry → material → physics → study ordering.
func maxScope(hasMaterial, hasPhysics, hasStudy bool) Agent {
	switch {
	case hasStudy:
		return Study
	case hasPhysics:
		return Physics
	case hasMaterial:
		return Material
	default:
		return Geometry
	}
}

func scopeIndex(a Agent) int {
	for i, s := range scopeOrder {
		if s == a {
			return i
		}
	}
	return 0
}

// filterByIntent truncates steps to the scope the user input actually
// mentions, collapsing to a single geometry step when a scope-limit phrase
// is present and none of material/physics/study were mentioned. Steps are
// always renumbered contiguously from 1.
func filterByIntent(userInput string, plan SerialPlan) SerialPlan {
	if len(plan.Steps) == 0 {
		return plan
	}

	lower := strings.ToLower(strings.TrimSpace(userInput))
	hasMaterial := containsAny(lower, materialKeywords)
	hasPhysics := containsAny(lower, physicsKeywords)
	hasStudy := containsAny(lower, studyKeywords)
	hasScopeLimit := containsAny(lower, scopeLimitPhrases)

	if hasScopeLimit && !hasMaterial && !hasPhysics && !hasStudy {
		var geomOnly []PlanStep
		for _, s := range plan.Steps {
			if s.AgentType == Geometry {
				geomOnly = append(geomOnly, s)
			}
		}
		if len(geomOnly) == 0 {
			geomOnly = []PlanStep{{StepIndex: 1, AgentType: Geometry, Description: "geometry modeling", InputSnippet: userInput}}
		}
		return SerialPlan{Steps: renumber(geomOnly), PlanDescription: plan.PlanDescription}
	}

	allowedDepth := scopeIndex(maxScope(hasMaterial, hasPhysics, hasStudy))
	var filtered []PlanStep
	for _, s := range plan.Steps {
		if scopeIndex(s.AgentType) <= allowedDepth {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		filtered = []PlanStep{{StepIndex: 1, AgentType: Geometry, Description: "geometry modeling", InputSnippet: userInput}}
	}
	return SerialPlan{Steps: renumber(filtered), PlanDescription: plan.PlanDescription}
}

func renumber(steps []PlanStep) []PlanStep {
	out := make([]PlanStep, len(steps))
	for i, s := range steps {
		s.StepIndex = i + 1
		out[i] = s
	}
	return out
}

// defaultEmptyPhysics and defaultEmptyStudy substitute for a failed or
// unimplemented optional planner, per spec.md §4.8 step 4 ("the others have
// minimal empties").
var (
	defaultEmptyPhysics = &PhysicsPlan{}
	defaultEmptyStudy   = &StudyPlan{}
)

// Run executes serialPlan's steps in order against the configured domain
// planners, building shared A2A context as it goes. A step failure (or an
// ErrNotImplemented optional planner) appends a failure record and
// substitutes a default sub-plan; Run never aborts early.
func (o *Orchestrator) Run(ctx context.Context, userInput, externalContext string, shared *SharedContext) (TaskPlan, *SharedContext, SerialPlan, error) {
	serialPlan, err := o.Decompose(ctx, userInput)
	if err != nil {
		return TaskPlan{}, shared, serialPlan, err
	}

	if shared == nil {
		shared = NewSharedContext(userInput)
	} else {
		shared.UserInput = userInput
	}

	var task TaskPlan

	for _, step := range serialPlan.Steps {
		p, ok := o.planners[step.AgentType]
		stepInput := firstNonEmpty(step.InputSnippet, step.Description, userInput)
		otherCtx := shared.GetContextForAgent(step.AgentType)
		combined := externalContext
		if combined != "" {
			combined += "\n\n"
		}
		combined += "[what other agents did and any errors]\n" + otherCtx

		if !ok {
			p = missingPlanner{}
		}

		result, err := p.Parse(ctx, stepInput, combined)
		if err != nil {
			o.logger.WarnWithContext(ctx, "planner step failed", map[string]interface{}{
				"step":  strconv.Itoa(step.StepIndex),
				"agent": string(step.AgentType),
				"error": err.Error(),
			})
			shared.AppendFailure(step.StepIndex, step.AgentType, err.Error())
			applyDefault(&task, step.AgentType)
			continue
		}

		summary, err := attach(&task, step.AgentType, result)
		if err != nil {
			shared.AppendFailure(step.StepIndex, step.AgentType, err.Error())
			applyDefault(&task, step.AgentType)
			continue
		}
		shared.AppendSuccess(step.StepIndex, step.AgentType, summary, result)
	}

	return task, shared, serialPlan, nil
}

// missingPlanner stands in for an agent kind with no configured
// implementation; it always reports core.ErrNotImplemented.
type missingPlanner struct{}

func (missingPlanner) Parse(ctx context.Context, input, combinedContext string) (interface{}, error) {
	return nil, fmt.Errorf("planner: %w", core.ErrNotImplemented)
}

func attach(task *TaskPlan, agent Agent, result interface{}) (string, error) {
	switch agent {
	case Geometry:
		plan, ok := result.(*GeometryPlan)
		if !ok {
			return "", errors.New("geometry planner returned unexpected type")
		}
		task.Geometry = plan
		if plan.Dimension == 3 {
			task.Dimension = "3D"
		} else {
			task.Dimension = "2D"
		}
		return fmt.Sprintf("%d shapes, %d operations, %s", len(plan.Shapes), len(plan.Operations), task.Dimension), nil
	case Material:
		plan, ok := result.(*MaterialPlan)
		if !ok {
			return "", errors.New("material planner returned unexpected type")
		}
		task.Material = plan
		return fmt.Sprintf("%d materials", len(plan.Materials)), nil
	case Physics:
		plan, ok := result.(*PhysicsPlan)
		if !ok {
			return "", errors.New("physics planner returned unexpected type")
		}
		task.Physics = plan
		return fmt.Sprintf("%d physics fields", len(plan.Fields)), nil
	case Study:
		plan, ok := result.(*StudyPlan)
		if !ok {
			return "", errors.New("study planner returned unexpected type")
		}
		task.Study = plan
		return fmt.Sprintf("%d studies", len(plan.Studies)), nil
	default:
		return "", fmt.Errorf("unknown agent type %q", agent)
	}
}

func applyDefault(task *TaskPlan, agent Agent) {
	switch agent {
	case Geometry:
		if task.Geometry == nil {
			task.Geometry = &GeometryPlan{ModelName: "model", Units: "m", Dimension: 2}
		}
	case Material:
		if task.Material == nil {
			task.Material = defaultMaterialPlanCopy()
		}
	case Physics:
		if task.Physics == nil {
			task.Physics = defaultEmptyPhysics
		}
	case Study:
		if task.Study == nil {
			task.Study = defaultEmptyStudy
		}
	}
}

// defaultMaterialPlanCopy returns the built-in steel default. Declared here
// (rather than importing planner/material, which would create an import
// cycle) and kept in lockstep with material.DefaultMaterialPlan's values.
func defaultMaterialPlanCopy() *MaterialPlan {
	return &MaterialPlan{
		Materials: []MaterialDefinition{
			{
				Name:  "mat1",
				Label: "Steel",
				Properties: []MaterialProperty{
					{Name: "density", Value: 7850.0, Unit: "kg/m^3"},
					{Name: "thermalconductivity", Value: 44.5, Unit: "W/(m*K)"},
					{Name: "specificheat", Value: 475.0, Unit: "J/(kg*K)"},
					{Name: "youngsmodulus", Value: 200e9, Unit: "Pa"},
					{Name: "poissonsratio", Value: 0.3},
				},
			},
		},
		Assignments: []MaterialAssignment{{MaterialName: "mat1", AssignAll: true}},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
