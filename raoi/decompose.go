package raoi

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/planner"
)

type decomposeStep struct {
	StepType string `json:"step_type"`
	Action   string `json:"action"`
}

type decomposeResponse struct {
	Steps         []decomposeStep `json:"steps"`
	StopAfterStep string          `json:"stop_after_step"`
}

// PlanFromScratch is the controller's own fallback planning path, used
// when the Planner Orchestrator is bypassed: it asks the LLM to describe
// the required steps directly rather than expanding a Planner
// Orchestrator TaskPlan. Ported from reasoning_engine.py's
// understand_and_plan LLM-only branch. On any failure it falls back to a
// single create_geometry step, matching Expand's behaviour for a
// geometry-only plan.
func (c *Controller) PlanFromScratch(ctx context.Context, userInput, modelName string) *TaskPlan {
	fallback := func() *TaskPlan {
		step, _ := NewExecutionStep("step_1", StepGeometry, &CreateGeometryAction{GeometryInput: userInput})
		return NewTaskPlan(uuid.NewString(), modelName, userInput, []*ExecutionStep{step}, "")
	}

	if c.gateway == nil {
		return fallback()
	}

	prompt, err := c.prompts.Format("raoi", "decompose", map[string]string{"query": userInput})
	if err != nil {
		return fallback()
	}

	resp, err := c.gateway.Call(ctx, prompt, &core.AIOptions{Temperature: 0.1})
	if err != nil {
		c.logger.WarnWithContext(ctx, "raoi: orchestrator-bypass planning failed, falling back to geometry-only", map[string]interface{}{"error": err.Error()})
		return fallback()
	}

	raw, err := planner.ExtractJSON(resp.Content)
	if err != nil {
		return fallback()
	}
	var decoded decomposeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fallback()
	}

	var steps []*ExecutionStep
	for i, s := range decoded.Steps {
		kind := ActionKind(strings.ToLower(strings.TrimSpace(s.Action)))
		action, err := actionFromSuggestion(kind, nil)
		if err != nil {
			continue
		}
		step, err := NewExecutionStep("step_"+strconv.Itoa(i+1), StepType(strings.ToLower(strings.TrimSpace(s.StepType))), action)
		if err != nil {
			continue
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return fallback()
	}

	stopAfter := ActionKind(strings.ToLower(strings.TrimSpace(decoded.StopAfterStep)))
	if stopAfter == "" {
		stopAfter = InferStopAfter(userInput)
	}

	return NewTaskPlan(uuid.NewString(), modelName, userInput, steps, stopAfter)
}
