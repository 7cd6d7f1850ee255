package raoi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/planner"
)

const maxStepRetries = 3
const warningRefineThreshold = 5

// fatalPatterns are message substrings that identify an error as
// unrecoverable by rollback or retry — an API/runtime mismatch rather
// than an incomplete prior step. Ported from iteration_controller.py's
// _handle_error fatal-error short circuit.
var fatalPatterns = []string{"object has no attribute", "has no attribute"}

func isFatal(message string) bool {
	lower := strings.ToLower(message)
	for _, p := range fatalPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	if strings.Contains(lower, "cannot find") {
		for _, marker := range []string{"project root", "jvm", "jar"} {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// rollbackEligibleSteps lists the failing step types for which
// handleError tries rollback-and-inject: an error at solve/study/mesh/physics
// may come from a prior step whose output the failing step depends on.
var rollbackEligibleSteps = map[StepType]bool{
	StepSolve: true, StepStudy: true, StepMesh: true, StepPhysics: true,
}

// iterate recovers from a non-success observation, per spec.md §4.9 step 4.
func (c *Controller) iterate(ctx context.Context, task *TaskPlan, obs Observation, iterationNum int) {
	task.AddIteration(IterationRecord{
		IterationID:  len(task.Iterations) + 1,
		Reason:       obs.Message,
		Observations: []Observation{obs},
		Timestamp:    obs.Timestamp,
	})

	if obs.Status == ObservationWarning {
		c.handleWarning(ctx, task, obs)
		return
	}

	c.handleError(ctx, task, obs)
}

// handleError mirrors iteration_controller.py's _handle_error: fatal
// errors end the task immediately; errors on a solve/study/mesh/physics
// step plausibly caused by an incomplete prior step attempt
// rollback-and-inject first; everything else falls through to a bounded
// per-step retry, then an LLM-assisted refine.
func (c *Controller) handleError(ctx context.Context, task *TaskPlan, obs Observation) {
	if isFatal(obs.Message) {
		task.Status = Failed
		task.Error = obs.Message
		c.logger.ErrorWithContext(ctx, "raoi: fatal error, terminating task", map[string]interface{}{"message": obs.Message})
		return
	}

	step := findStep(task, obs.StepID)
	if step == nil {
		return
	}

	if rollbackEligibleSteps[step.StepType] && c.gateway != nil {
		if c.rollbackAndInject(ctx, task, step, obs) {
			return
		}
	}

	if step.Status == StepFailed {
		if step.RetryCount < maxStepRetries {
			step.Status = StepPending
			step.RetryCount++
			c.logger.InfoWithContext(ctx, "raoi: retrying step", map[string]interface{}{"step_id": step.StepID, "attempt": step.RetryCount})
		} else {
			step.Status = StepCompleted
			c.logger.WarnWithContext(ctx, "raoi: step exceeded retry budget, skipping", map[string]interface{}{"step_id": step.StepID})
			if task.CurrentStep() == step {
				task.CursorIndex++
			}
		}
	}

	if c.gateway != nil {
		c.refinePlan(ctx, task, c.generateFeedback(task, obs), &obs)
	}
}

// handleWarning mirrors _handle_warning: warnings are logged and mostly
// left alone, but 5 accumulated warnings across the task's full history
// trigger an LLM-assisted plan refinement.
func (c *Controller) handleWarning(ctx context.Context, task *TaskPlan, obs Observation) {
	c.logger.InfoWithContext(ctx, "raoi: received warning", map[string]interface{}{"message": obs.Message})
	if task.warningCount() < warningRefineThreshold || c.gateway == nil {
		return
	}
	c.refinePlan(ctx, task, c.generateFeedback(task, obs), nil)
}

// generateFeedback summarises the task's recent state for an LLM
// refinement call, ported from generate_feedback.
func (c *Controller) generateFeedback(task *TaskPlan, obs Observation) string {
	var parts []string
	parts = append(parts, "observation: "+obs.Message)

	if current := task.CurrentStep(); current != nil {
		parts = append(parts, fmt.Sprintf("current step: %s (%s)", current.Action.Kind(), current.StepType))
	}

	recent := task.recentObservations(5)
	errorCount, warningCount := 0, 0
	for _, o := range recent {
		switch o.Status {
		case ObservationError:
			errorCount++
		case ObservationWarning:
			warningCount++
		}
	}
	if errorCount > 0 {
		parts = append(parts, fmt.Sprintf("%d recent error(s)", errorCount))
	}
	if warningCount > 0 {
		parts = append(parts, fmt.Sprintf("%d recent warning(s)", warningCount))
	}

	completed := 0
	for _, s := range task.ExecutionPath {
		if s.Status == StepCompleted {
			completed++
		}
	}
	parts = append(parts, fmt.Sprintf("progress: %d/%d steps completed", completed, len(task.ExecutionPath)))

	return strings.Join(parts, "\n")
}

type rollbackSuggestion struct {
	RollbackAction string `json:"rollback_action"`
	Reason         string `json:"reason"`
	MaterialInput  string `json:"material_input"`
	PhysicsInput   string `json:"physics_input"`
}

// rollbackAndInject asks the LLM which earlier step the failure is really
// attributable to and what replacement input to feed it, then resets that
// step and every subsequent one to pending. Returns true if a rollback
// was applied. Ported from _rollback_and_inject.
func (c *Controller) rollbackAndInject(ctx context.Context, task *TaskPlan, failing *ExecutionStep, obs Observation) bool {
	stepList := describeSteps(task.ExecutionPath)
	prompt, err := c.prompts.Format("raoi", "rollback", map[string]string{"step": stepList, "error": obs.Message})
	if err != nil {
		return false
	}

	resp, err := c.gateway.Call(ctx, prompt, &core.AIOptions{Temperature: 0.1})
	if err != nil {
		c.logger.WarnWithContext(ctx, "raoi: rollback analysis failed, falling back to retry", map[string]interface{}{"error": err.Error()})
		return false
	}

	raw, err := planner.ExtractJSON(resp.Content)
	if err != nil {
		return false
	}
	var sug rollbackSuggestion
	if err := json.Unmarshal(raw, &sug); err != nil {
		return false
	}

	action := strings.ToLower(strings.TrimSpace(sug.RollbackAction))
	if fields := strings.Fields(action); len(fields) > 0 {
		action = fields[0]
	}
	action = strings.SplitN(action, "（", 2)[0]
	if action == "" || action == "solve" {
		return false
	}

	targetIdx := -1
	for i, s := range task.ExecutionPath {
		if string(s.Action.Kind()) == action {
			targetIdx = i
			break
		}
	}
	if targetIdx == -1 {
		return false
	}

	for i := targetIdx; i < len(task.ExecutionPath); i++ {
		task.ExecutionPath[i].Status = StepPending
		task.ExecutionPath[i].Result = nil
	}
	target := task.ExecutionPath[targetIdx]
	if sug.MaterialInput != "" {
		if a, ok := target.Action.(*AddMaterialAction); ok {
			a.MaterialInput = sug.MaterialInput
		}
	}
	if sug.PhysicsInput != "" {
		if a, ok := target.Action.(*AddPhysicsAction); ok {
			a.PhysicsInput = sug.PhysicsInput
		}
	}
	task.CursorIndex = targetIdx
	c.logger.InfoWithContext(ctx, "raoi: rolled back to earlier step", map[string]interface{}{"step_id": target.StepID, "action": string(target.Action.Kind())})
	return true
}

func describeSteps(steps []*ExecutionStep) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = fmt.Sprintf("%s:%s", s.StepType, s.Action.Kind())
	}
	return strings.Join(parts, ", ")
}

type refineModifiedStep struct {
	StepID     string                 `json:"step_id"`
	Parameters map[string]interface{} `json:"parameters"`
}

type refineNewStep struct {
	StepType   string                 `json:"step_type"`
	Action     string                 `json:"action"`
	Parameters map[string]interface{} `json:"parameters"`
}

type refineSuggestion struct {
	SuggestedChanges string               `json:"suggested_changes"`
	SkipCurrent      bool                 `json:"skip_current"`
	ModifiedSteps    []refineModifiedStep `json:"modified_steps"`
	NewSteps         []refineNewStep      `json:"new_steps"`
	DropStepIDs      []string             `json:"drop_step_ids"`
}

// refinePlan asks the LLM for a targeted adjustment to the plan: skip the
// current step, patch an existing step's input, append new steps, or (the
// one operation the original never implements, supplementing it here per
// spec.md §4.9's "add, modify, or drop steps by id") drop steps outright.
// Ported from _llm_refine_plan / refine_plan.
func (c *Controller) refinePlan(ctx context.Context, task *TaskPlan, feedback string, obs *Observation) {
	prompt, err := c.prompts.Format("raoi", "refine", map[string]string{"plan": describeSteps(task.ExecutionPath), "feedback": feedback})
	if err != nil {
		return
	}

	resp, err := c.gateway.Call(ctx, prompt, &core.AIOptions{Temperature: 0.2})
	if err != nil {
		c.logger.WarnWithContext(ctx, "raoi: plan refinement failed", map[string]interface{}{"error": err.Error()})
		return
	}

	raw, err := planner.ExtractJSON(resp.Content)
	if err != nil {
		return
	}
	var sug refineSuggestion
	if err := json.Unmarshal(raw, &sug); err != nil {
		return
	}

	if sug.SkipCurrent {
		if current := task.CurrentStep(); current != nil {
			current.Status = StepCompleted
			if task.CursorIndex < len(task.ExecutionPath)-1 {
				task.CursorIndex++
			}
		}
	}

	for _, ns := range sug.NewSteps {
		action, err := actionFromSuggestion(ActionKind(strings.ToLower(ns.Action)), ns.Parameters)
		if err != nil {
			continue
		}
		step, err := NewExecutionStep(fmt.Sprintf("step_%d", len(task.ExecutionPath)+1), StepType(strings.ToLower(ns.StepType)), action)
		if err != nil {
			continue
		}
		task.ExecutionPath = append(task.ExecutionPath, step)
	}

	for _, mod := range sug.ModifiedSteps {
		step := findStep(task, mod.StepID)
		if step == nil {
			continue
		}
		applyParameters(step.Action, mod.Parameters)
		step.Status = StepPending
	}

	if len(sug.DropStepIDs) > 0 {
		dropStepsByID(task, sug.DropStepIDs)
	}

	c.logger.InfoWithContext(ctx, "raoi: plan refined", map[string]interface{}{"changes": sug.SuggestedChanges})
}

// dropStepsByID removes the named steps from the execution path (the
// drop operation spec.md names alongside add/modify, which the original
// Python never implements), clamping the cursor if it pointed past the
// removed range.
func dropStepsByID(task *TaskPlan, ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []*ExecutionStep
	for _, s := range task.ExecutionPath {
		if !drop[s.StepID] {
			kept = append(kept, s)
		}
	}
	task.ExecutionPath = kept
	if task.CursorIndex > len(task.ExecutionPath) {
		task.CursorIndex = len(task.ExecutionPath)
	}
}

// actionFromSuggestion builds the Action variant matching kind, reading
// its one natural-language input field (if any) out of params.
func actionFromSuggestion(kind ActionKind, params map[string]interface{}) (Action, error) {
	switch kind {
	case ActionCreateGeometry:
		return &CreateGeometryAction{GeometryInput: stringParam(params, "geometry_input")}, nil
	case ActionAddMaterial:
		return &AddMaterialAction{MaterialInput: stringParam(params, "material_input")}, nil
	case ActionAddPhysics:
		return &AddPhysicsAction{PhysicsInput: stringParam(params, "physics_input")}, nil
	case ActionGenerateMesh:
		return &GenerateMeshAction{}, nil
	case ActionConfigureStudy:
		return &ConfigureStudyAction{StudyInput: stringParam(params, "study_input")}, nil
	case ActionSolve:
		return &SolveAction{}, nil
	default:
		return nil, fmt.Errorf("raoi: unrecognised action %q: %w", kind, core.ErrInvalidConfiguration)
	}
}

// applyParameters patches an existing Action's input field in place, used
// when a refine suggestion modifies a step rather than adding one.
func applyParameters(action Action, params map[string]interface{}) {
	switch a := action.(type) {
	case *CreateGeometryAction:
		if v := stringParam(params, "geometry_input"); v != "" {
			a.GeometryInput = v
		}
	case *AddMaterialAction:
		if v := stringParam(params, "material_input"); v != "" {
			a.MaterialInput = v
		}
	case *AddPhysicsAction:
		if v := stringParam(params, "physics_input"); v != "" {
			a.PhysicsInput = v
		}
	case *ConfigureStudyAction:
		if v := stringParam(params, "study_input"); v != "" {
			a.StudyInput = v
		}
	}
}

func stringParam(params map[string]interface{}, key string) string {
	if params == nil {
		return ""
	}
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
