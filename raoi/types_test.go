package raoi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcore/agent/core"
)

func TestNewExecutionStep_RejectsMismatchedActionForStepType(t *testing.T) {
	_, err := NewExecutionStep("step_1", StepGeometry, &AddMaterialAction{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
}

func TestNewExecutionStep_AcceptsMatchingPair(t *testing.T) {
	step, err := NewExecutionStep("step_1", StepGeometry, &CreateGeometryAction{GeometryInput: "a box"})
	require.NoError(t, err)
	assert.Equal(t, StepPending, step.Status)
}

func TestNewTaskPlan_TrimsToStopAfterStep(t *testing.T) {
	s1, _ := NewExecutionStep("step_1", StepGeometry, &CreateGeometryAction{})
	s2, _ := NewExecutionStep("step_2", StepMaterial, &AddMaterialAction{})
	s3, _ := NewExecutionStep("step_3", StepPhysics, &AddPhysicsAction{})

	plan := NewTaskPlan("t1", "model", "build it", []*ExecutionStep{s1, s2, s3}, ActionAddMaterial)
	require.Len(t, plan.ExecutionPath, 2)
	assert.Equal(t, "step_2", plan.ExecutionPath[1].StepID)
}

func TestNewTaskPlan_NoStopAfterKeepsFullPath(t *testing.T) {
	s1, _ := NewExecutionStep("step_1", StepGeometry, &CreateGeometryAction{})
	s2, _ := NewExecutionStep("step_2", StepMaterial, &AddMaterialAction{})

	plan := NewTaskPlan("t1", "model", "build it", []*ExecutionStep{s1, s2}, "")
	assert.Len(t, plan.ExecutionPath, 2)
}

func TestTaskPlan_RecomputeStatus_CompletesWhenCursorPastEnd(t *testing.T) {
	s1, _ := NewExecutionStep("step_1", StepGeometry, &CreateGeometryAction{})
	plan := NewTaskPlan("t1", "model", "build it", []*ExecutionStep{s1}, "")
	plan.Status = Executing
	plan.CursorIndex = 1

	plan.RecomputeStatus()
	assert.Equal(t, Completed, plan.Status)
}

func TestTaskPlan_RecomputeStatus_NeverOverridesFailed(t *testing.T) {
	s1, _ := NewExecutionStep("step_1", StepGeometry, &CreateGeometryAction{})
	plan := NewTaskPlan("t1", "model", "build it", []*ExecutionStep{s1}, "")
	plan.Status = Failed
	plan.CursorIndex = 1

	plan.RecomputeStatus()
	assert.Equal(t, Failed, plan.Status)
}

func TestTaskPlan_FailedSteps(t *testing.T) {
	s1, _ := NewExecutionStep("step_1", StepGeometry, &CreateGeometryAction{})
	s2, _ := NewExecutionStep("step_2", StepMaterial, &AddMaterialAction{})
	s2.Status = StepFailed

	plan := NewTaskPlan("t1", "model", "build it", []*ExecutionStep{s1, s2}, "")
	failed := plan.FailedSteps()
	require.Len(t, failed, 1)
	assert.Equal(t, "step_2", failed[0].StepID)
}
