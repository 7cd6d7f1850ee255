// Package raoi implements the reason/act/observe/iterate controller: the
// bounded loop that walks a domain task plan's expanded execution path one
// step at a time, asking the backend to perform each operation and
// recovering from failures by rollback, retry, or LLM-assisted plan
// refinement, per spec.md §4.9.
package raoi

import (
	"fmt"
	"time"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/planner"
)

// StepType identifies what kind of operation an ExecutionStep performs,
// mirrored from schemas/task.py's ExecutionStep.step_type literal.
type StepType string

const (
	StepGeometry    StepType = "geometry"
	StepMaterial    StepType = "material"
	StepPhysics     StepType = "physics"
	StepMesh        StepType = "mesh"
	StepStudy       StepType = "study"
	StepSolve       StepType = "solve"
	StepSelection   StepType = "selection"
	StepGeometryIO  StepType = "geometry_io"
	StepPostprocess StepType = "postprocess"
)

// StepStatus is an ExecutionStep's lifecycle state.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ActionKind names the backend operation an Action performs. Per the
// "dynamic dispatch by action name" design note, this is the discriminant
// of a closed sum type rather than a free-form string matched against a
// handler table.
type ActionKind string

const (
	ActionCreateGeometry ActionKind = "create_geometry"
	ActionAddMaterial    ActionKind = "add_material"
	ActionAddPhysics     ActionKind = "add_physics"
	ActionGenerateMesh   ActionKind = "generate_mesh"
	ActionConfigureStudy ActionKind = "configure_study"
	ActionSolve          ActionKind = "solve"
	ActionSelection      ActionKind = "selection"
	ActionGeometryIO     ActionKind = "geometry_io"
	ActionPostprocess    ActionKind = "postprocess"
)

// Action is the sum type of backend operations an ExecutionStep can carry.
// Each variant owns exactly the parameters that operation needs; there is
// no shared "parameters map" a handler must interpret at dispatch time.
type Action interface {
	Kind() ActionKind
}

type CreateGeometryAction struct{ GeometryInput string }

func (*CreateGeometryAction) Kind() ActionKind { return ActionCreateGeometry }

type AddMaterialAction struct{ MaterialInput string }

func (*AddMaterialAction) Kind() ActionKind { return ActionAddMaterial }

type AddPhysicsAction struct{ PhysicsInput string }

func (*AddPhysicsAction) Kind() ActionKind { return ActionAddPhysics }

type GenerateMeshAction struct{}

func (*GenerateMeshAction) Kind() ActionKind { return ActionGenerateMesh }

type ConfigureStudyAction struct{ StudyInput string }

func (*ConfigureStudyAction) Kind() ActionKind { return ActionConfigureStudy }

type SolveAction struct{}

func (*SolveAction) Kind() ActionKind { return ActionSolve }

type SelectionAction struct{ Description string }

func (*SelectionAction) Kind() ActionKind { return ActionSelection }

type GeometryIOAction struct{ Description string }

func (*GeometryIOAction) Kind() ActionKind { return ActionGeometryIO }

type PostprocessAction struct{ Description string }

func (*PostprocessAction) Kind() ActionKind { return ActionPostprocess }

// stepTypeForAction is the one legal StepType for each ActionKind, checked
// by NewExecutionStep so an invalid (type, action) pairing is rejected at
// construction, never at dispatch.
var stepTypeForAction = map[ActionKind]StepType{
	ActionCreateGeometry: StepGeometry,
	ActionAddMaterial:    StepMaterial,
	ActionAddPhysics:     StepPhysics,
	ActionGenerateMesh:   StepMesh,
	ActionConfigureStudy: StepStudy,
	ActionSolve:          StepSolve,
	ActionSelection:      StepSelection,
	ActionGeometryIO:     StepGeometryIO,
	ActionPostprocess:    StepPostprocess,
}

// ExecutionStep is one node of a task's expanded execution path.
type ExecutionStep struct {
	StepID     string
	StepType   StepType
	Action     Action
	Status     StepStatus
	RetryCount int
	Result     map[string]interface{}
}

// NewExecutionStep validates that action's kind matches stepType before
// constructing the step, so an unrecognised or mismatched action can never
// enter a task's execution path.
func NewExecutionStep(stepID string, stepType StepType, action Action) (*ExecutionStep, error) {
	want, ok := stepTypeForAction[action.Kind()]
	if !ok || want != stepType {
		return nil, fmt.Errorf("raoi: action %q is not valid for step type %q: %w", action.Kind(), stepType, core.ErrInvalidConfiguration)
	}
	return &ExecutionStep{StepID: stepID, StepType: stepType, Action: action, Status: StepPending}, nil
}

// ObservationStatus is the verdict Observe attaches to a step's result.
type ObservationStatus string

const (
	ObservationSuccess ObservationStatus = "success"
	ObservationWarning ObservationStatus = "warning"
	ObservationError   ObservationStatus = "error"
)

// Observation is the wrapped, human-readable verdict produced by Observe
// for one Act result.
type Observation struct {
	ID        string
	StepID    string
	Status    ObservationStatus
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// IterationRecord captures one non-success pass through Iterate: the
// reason it fired and the observation(s) that triggered it.
type IterationRecord struct {
	IterationID  int
	Reason       string
	Observations []Observation
	Timestamp    time.Time
}

// Status is a TaskPlan's overall lifecycle state.
type Status string

const (
	Planning  Status = "planning"
	Executing Status = "executing"
	Observing Status = "observing"
	Iterating Status = "iterating"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// TaskPlan is the RAOI controller's working state for one modeling turn:
// the expanded execution path, the cursor into it, and the accumulated
// observation/iteration history. Distinct from planner.TaskPlan (the
// Planner Orchestrator's thinner output) — this is schemas/task.py's
// ReActTaskPlan, reached once the orchestrator's plan is expanded into a
// step-by-step execution path.
type TaskPlan struct {
	TaskID    string
	ModelName string
	UserInput string
	Dimension int

	ExecutionPath []*ExecutionStep
	CursorIndex   int

	Observations []Observation
	Iterations   []IterationRecord

	Status        Status
	ArtifactPath  string
	Error         string
	StopAfterStep ActionKind

	PlanDescription        string
	OutputDir              string
	IntegrationSuggestions []string

	Geometry *planner.GeometryPlan
	Material *planner.MaterialPlan
	Physics  *planner.PhysicsPlan
	Study    *planner.StudyPlan
}

// NewTaskPlan constructs a TaskPlan from an already-expanded execution
// path. When stopAfterStep names an action present in steps, the path is
// trimmed to end at (and include) that step — mirroring
// ReActTaskPlan.stop_after_step's save-and-exit semantics.
func NewTaskPlan(taskID, modelName, userInput string, steps []*ExecutionStep, stopAfterStep ActionKind) *TaskPlan {
	trimmed := steps
	if stopAfterStep != "" {
		for i, s := range steps {
			if s.Action.Kind() == stopAfterStep {
				trimmed = steps[:i+1]
				break
			}
		}
	}
	return &TaskPlan{
		TaskID:        taskID,
		ModelName:     modelName,
		UserInput:     userInput,
		ExecutionPath: trimmed,
		Status:        Planning,
		StopAfterStep: stopAfterStep,
	}
}

// CurrentStep returns the step at CursorIndex, or nil once the cursor has
// run off the end of the path.
func (p *TaskPlan) CurrentStep() *ExecutionStep {
	if p.CursorIndex < 0 || p.CursorIndex >= len(p.ExecutionPath) {
		return nil
	}
	return p.ExecutionPath[p.CursorIndex]
}

// IsComplete reports whether every step in the path has status completed.
func (p *TaskPlan) IsComplete() bool {
	for _, s := range p.ExecutionPath {
		if s.Status != StepCompleted {
			return false
		}
	}
	return true
}

// HasFailed reports whether the task's overall status is Failed.
func (p *TaskPlan) HasFailed() bool {
	return p.Status == Failed
}

// FailedSteps returns every step currently in StepFailed status.
func (p *TaskPlan) FailedSteps() []*ExecutionStep {
	var out []*ExecutionStep
	for _, s := range p.ExecutionPath {
		if s.Status == StepFailed {
			out = append(out, s)
		}
	}
	return out
}

// AddObservation appends obs to the task's observation log.
func (p *TaskPlan) AddObservation(obs Observation) {
	p.Observations = append(p.Observations, obs)
}

// AddIteration appends rec to the task's iteration history.
func (p *TaskPlan) AddIteration(rec IterationRecord) {
	p.Iterations = append(p.Iterations, rec)
}

// RecomputeStatus enforces the plan's terminal-state invariant: once the
// cursor has advanced past the last step and the task is not already
// failed, status becomes completed.
func (p *TaskPlan) RecomputeStatus() {
	if p.Status == Failed {
		return
	}
	if p.CursorIndex >= len(p.ExecutionPath) {
		p.Status = Completed
	}
}

// recentObservations returns the last n observations (or fewer).
func (p *TaskPlan) recentObservations(n int) []Observation {
	if len(p.Observations) <= n {
		return p.Observations
	}
	return p.Observations[len(p.Observations)-n:]
}

// warningCount returns how many observations in the task's full history
// carry ObservationWarning status.
func (p *TaskPlan) warningCount() int {
	count := 0
	for _, o := range p.Observations {
		if o.Status == ObservationWarning {
			count++
		}
	}
	return count
}
