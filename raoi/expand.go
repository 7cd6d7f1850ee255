package raoi

import (
	"strconv"
	"strings"

	"github.com/modelcore/agent/planner"
)

// Expand converts a Planner Orchestrator's TaskPlan into the RAOI
// execution path, grounded on
// agent/react/reasoning_engine.py's _task_plan_to_execution_path: strict
// COMSOL ordering (geometry → material → physics → mesh → study → solve),
// including only the steps the sub-plans actually call for. mesh/study/
// solve are appended only when a physics or study plan is present — a
// pure-geometry or geometry-plus-material run never reaches solve.
func Expand(task planner.TaskPlan) []*ExecutionStep {
	var steps []*ExecutionStep
	idx := 0

	next := func(stepType StepType, action Action) {
		idx++
		step, err := NewExecutionStep("step_"+strconv.Itoa(idx), stepType, action)
		if err != nil {
			// stepTypeForAction is exhaustive for every action constructed
			// below, so this can only indicate a programming error here.
			panic(err)
		}
		steps = append(steps, step)
	}

	if task.Geometry != nil {
		next(StepGeometry, &CreateGeometryAction{})
	}
	if task.Material != nil {
		next(StepMaterial, &AddMaterialAction{})
	}
	if task.Physics != nil {
		next(StepPhysics, &AddPhysicsAction{})
	}

	needSolve := task.Physics != nil || task.Study != nil
	if needSolve {
		next(StepMesh, &GenerateMeshAction{})
		next(StepStudy, &ConfigureStudyAction{})
		next(StepSolve, &SolveAction{})
	}

	return steps
}

// geometryOnlyPhrases and friends let the controller infer a
// stop_after_step hint from the user's own wording when the LLM (in the
// orchestrator-bypass path) didn't set one, per
// _infer_stop_after_from_user_input.
var (
	geometryOnlyPhrases = []string{"只建几何", "只创建几何", "仅几何", "只画几何", "就建几何", "建几何就行", "只要几何", "just the geometry", "only the geometry"}
	materialStopPhrases = []string{"加完材料就行", "只加材料", "材料加完就停", "赋完材料就结束"}
	physicsStopPhrases  = []string{"加完物理场就行", "加完物理场就停", "只加物理场", "物理场加完就结束"}
	meshStopPhrases     = []string{"划分完网格就停", "划分网格就停", "网格划完就结束", "只划分网格"}
)

// InferStopAfter returns the action name the user's own phrasing implies
// the plan should stop after, or "" when no such phrase is present (in
// which case any stop hint already set by the LLM should be kept as-is).
func InferStopAfter(userInput string) ActionKind {
	text := strings.TrimSpace(userInput)
	if text == "" {
		return ""
	}
	switch {
	case containsAnyPhrase(text, geometryOnlyPhrases):
		return ActionCreateGeometry
	case containsAnyPhrase(text, materialStopPhrases):
		return ActionAddMaterial
	case containsAnyPhrase(text, physicsStopPhrases):
		return ActionAddPhysics
	case containsAnyPhrase(text, meshStopPhrases):
		return ActionGenerateMesh
	default:
		return ""
	}
}

func containsAnyPhrase(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
