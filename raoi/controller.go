package raoi

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/events"
	"github.com/modelcore/agent/prompts"
)

// Caller is the subset of ai.Gateway the Controller depends on, for its
// rollback, refinement, and orchestrator-bypass LLM calls.
type Caller interface {
	Call(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error)
}

const defaultMaxIterations = 10

// Controller is the reason/act/observe/iterate loop: Think proposes the
// next move, Act dispatches it to the Backend, Observe wraps the result,
// Iterate recovers from anything short of success. Grounded on
// agent/react/react_agent.py's ReActAgent plus its four collaborators
// (reasoning_engine.py, action_executor.py, observer.py,
// iteration_controller.py), folded into one controller since the Go
// module doesn't need four separately-constructed objects to express the
// same loop.
type Controller struct {
	backend Backend
	gateway Caller
	prompts *prompts.Registry
	bus     *events.Bus
	logger  core.Logger

	maxIterations int
}

// New constructs a Controller. gateway and bus may be nil: without a
// gateway, rollback-and-inject and LLM plan refinement are skipped in
// favour of the generic retry path; without a bus, no events are emitted.
func New(backend Backend, gateway Caller, reg *prompts.Registry, bus *events.Bus, logger core.Logger) *Controller {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Controller{
		backend:       backend,
		gateway:       gateway,
		prompts:       reg,
		bus:           bus,
		logger:        logger,
		maxIterations: defaultMaxIterations,
	}
}

// SetMaxIterations overrides the default bound of 10.
func (c *Controller) SetMaxIterations(n int) {
	if n > 0 {
		c.maxIterations = n
	}
}

// ThoughtAction is what Think proposes the loop do next.
type ThoughtAction string

const (
	ThoughtComplete ThoughtAction = "complete"
	ThoughtRetry    ThoughtAction = "retry"
	ThoughtSkip     ThoughtAction = "skip"
	ThoughtExecute  ThoughtAction = "execute"
)

// Thought is Think's proposal for the loop's next move.
type Thought struct {
	Action        ThoughtAction
	StepID        string
	FailedStepIDs []string
}

// Run drives task to completion or failure, mutating it in place. It
// returns nil only when task.Status ends Completed; a non-nil error wraps
// core.ErrFatal, core.ErrMaxIterations, or core.ErrCancelled according to
// how the loop ended.
func (c *Controller) Run(ctx context.Context, task *TaskPlan, sessionID string) error {
	task.Status = Executing

	for iteration := 1; iteration <= c.maxIterations; iteration++ {
		select {
		case <-ctx.Done():
			task.Status = Failed
			task.Error = "cancelled"
			return fmt.Errorf("raoi: %w", core.ErrCancelled)
		default:
		}

		c.emit(events.TaskPhase, sessionID, iteration, map[string]interface{}{"phase": "raoi", "iteration": iteration})

		thought := c.think(task)
		c.emit(events.ThinkChunk, sessionID, iteration, map[string]interface{}{"action": string(thought.Action)})

		if thought.Action == ThoughtComplete {
			task.RecomputeStatus()
			c.emit(events.ActionEnd, sessionID, iteration, map[string]interface{}{"action": "complete"})
			break
		}

		c.emit(events.ActionStart, sessionID, iteration, map[string]interface{}{"action": string(thought.Action)})
		obs := c.actAndObserve(ctx, task, thought, sessionID, iteration)

		if obs.Status == ObservationSuccess && task.IsComplete() {
			task.Status = Completed
			break
		}

		if obs.Status != ObservationSuccess {
			c.iterate(ctx, task, obs, iteration)
			if task.Status == Failed {
				break
			}
		}
	}

	switch task.Status {
	case Completed:
		return nil
	case Failed:
		return fmt.Errorf("raoi: %s: %w", task.Error, core.ErrFatal)
	default:
		return fmt.Errorf("raoi: task did not complete after %d iterations: %w", c.maxIterations, core.ErrMaxIterations)
	}
}

// think decides the loop's next move, per spec.md §4.9 step 1.
func (c *Controller) think(task *TaskPlan) Thought {
	if task.IsComplete() {
		return Thought{Action: ThoughtComplete}
	}

	failed := task.FailedSteps()
	if len(failed) == 1 {
		return Thought{Action: ThoughtRetry, FailedStepIDs: []string{failed[0].StepID}}
	}
	if len(failed) > 1 {
		ids := make([]string, len(failed))
		for i, s := range failed {
			ids[i] = s.StepID
		}
		return Thought{Action: ThoughtSkip, FailedStepIDs: ids}
	}

	if current := task.CurrentStep(); current != nil && current.Status == StepPending {
		return Thought{Action: ThoughtExecute, StepID: current.StepID}
	}

	if task.CursorIndex < len(task.ExecutionPath)-1 {
		task.CursorIndex++
		if next := task.CurrentStep(); next != nil {
			return Thought{Action: ThoughtExecute, StepID: next.StepID}
		}
	}

	return Thought{Action: ThoughtComplete}
}

// actAndObserve performs thought's move and returns its Observation. For
// ThoughtExecute this dispatches to the backend; for retry/skip it only
// mutates step status, mirroring execute_retry/execute_skip's plain
// success results in the original.
func (c *Controller) actAndObserve(ctx context.Context, task *TaskPlan, thought Thought, sessionID string, iteration int) Observation {
	switch thought.Action {
	case ThoughtRetry:
		for _, id := range thought.FailedStepIDs {
			if step := findStep(task, id); step != nil {
				step.Status = StepPending
			}
		}
		obs := newObservation("bulk_retry", ObservationSuccess, fmt.Sprintf("reset %d failed step(s) to pending", len(thought.FailedStepIDs)), nil)
		task.AddObservation(obs)
		return obs

	case ThoughtSkip:
		for _, id := range thought.FailedStepIDs {
			if step := findStep(task, id); step != nil {
				step.Status = StepCompleted
			}
		}
		obs := newObservation("bulk_skip", ObservationSuccess, fmt.Sprintf("skipped %d failed step(s)", len(thought.FailedStepIDs)), nil)
		task.AddObservation(obs)
		return obs

	case ThoughtExecute:
		step := findStep(task, thought.StepID)
		if step == nil {
			obs := newObservation(thought.StepID, ObservationError, "no such step", nil)
			task.AddObservation(obs)
			return obs
		}
		step.Status = StepRunning
		res := c.act(ctx, task, step)
		c.emit(events.ExecResult, sessionID, iteration, map[string]interface{}{"status": string(res.Status), "message": res.Message})

		obs := c.observe(task, step, res)
		task.AddObservation(obs)
		c.emit(events.Observation, sessionID, iteration, map[string]interface{}{"status": string(obs.Status), "message": obs.Message})

		step.Result = res.Data
		if obs.Status == ObservationError {
			step.Status = StepFailed
		} else {
			step.Status = StepCompleted
			if task.CurrentStep() == step {
				task.CursorIndex++
			}
		}
		return obs

	default:
		obs := newObservation("", ObservationError, "no actionable thought", nil)
		task.AddObservation(obs)
		return obs
	}
}

// act dispatches step's Action to the backend, per spec.md §4.9 step 2.
// An absent optional planner (physics/study never implemented) is reported
// as a warning, not an error — mirroring execute_physics/execute_study's
// NotImplementedError → {"status": "warning"} mapping.
func (c *Controller) act(ctx context.Context, task *TaskPlan, step *ExecutionStep) BackendResult {
	switch a := step.Action.(type) {
	case *CreateGeometryAction:
		input := firstNonEmpty(a.GeometryInput, task.UserInput)
		res, err := c.backend.CreateGeometry(ctx, task.ModelName, task.Geometry, input)
		return c.finishArtifact(task, res, err)

	case *AddMaterialAction:
		input := firstNonEmpty(a.MaterialInput, task.UserInput)
		res, err := c.backend.AddMaterial(ctx, task.ArtifactPath, task.Material, input)
		return c.finishArtifact(task, res, err)

	case *AddPhysicsAction:
		if task.Physics == nil {
			return BackendResult{Status: BackendWarning, Message: "physics planning is not implemented, skipping physics setup"}
		}
		input := firstNonEmpty(a.PhysicsInput, task.UserInput)
		res, err := c.backend.AddPhysics(ctx, task.ArtifactPath, task.Physics, input)
		return c.finishArtifact(task, res, err)

	case *GenerateMeshAction:
		res, err := c.backend.GenerateMesh(ctx, task.ArtifactPath)
		return c.finishArtifact(task, res, err)

	case *ConfigureStudyAction:
		if task.Study == nil {
			return BackendResult{Status: BackendWarning, Message: "study planning is not implemented, skipping study configuration"}
		}
		input := firstNonEmpty(a.StudyInput, task.UserInput)
		res, err := c.backend.ConfigureStudy(ctx, task.ArtifactPath, task.Study, input)
		return c.finishArtifact(task, res, err)

	case *SolveAction:
		res, err := c.backend.Solve(ctx, task.ArtifactPath)
		return c.finishArtifact(task, res, err)

	default:
		return BackendResult{Status: BackendError, Message: fmt.Sprintf("unsupported action %q", step.Action.Kind())}
	}
}

// finishArtifact reports a transport error as a BackendResult and, on
// success, adopts a backend-reported sibling artifact path (the
// file-lock fallback per spec.md §5's shared-resource rules).
func (c *Controller) finishArtifact(task *TaskPlan, res BackendResult, err error) BackendResult {
	if err != nil {
		return BackendResult{Status: BackendError, Message: err.Error()}
	}
	if res.ArtifactPath != "" {
		task.ArtifactPath = res.ArtifactPath
	}
	return res
}

// observe wraps an Act result into an Observation, per spec.md §4.9 step 3.
func (c *Controller) observe(task *TaskPlan, step *ExecutionStep, res BackendResult) Observation {
	if step.StepType == StepGeometry {
		if res.Status == BackendSuccess {
			if task.ArtifactPath != "" && artifactExists(task.ArtifactPath) {
				return newObservation(step.StepID, ObservationSuccess, "geometry build succeeded, artifact file generated", res.Data)
			}
			return newObservation(step.StepID, ObservationWarning, "geometry build succeeded, but artifact file was not found", res.Data)
		}
		return newObservation(step.StepID, ObservationError, "geometry build failed: "+firstNonEmpty(res.Message, "unknown error"), res.Data)
	}

	switch res.Status {
	case BackendSuccess:
		return newObservation(step.StepID, ObservationSuccess, firstNonEmpty(res.Message, "step completed"), res.Data)
	case BackendWarning:
		return newObservation(step.StepID, ObservationWarning, firstNonEmpty(res.Message, "step completed with a warning"), res.Data)
	default:
		return newObservation(step.StepID, ObservationError, firstNonEmpty(res.Message, "step failed"), res.Data)
	}
}

func artifactExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newObservation(stepID string, status ObservationStatus, message string, data map[string]interface{}) Observation {
	return Observation{ID: uuid.NewString(), StepID: stepID, Status: status, Message: message, Data: data, Timestamp: time.Now()}
}

func findStep(task *TaskPlan, stepID string) *ExecutionStep {
	for _, s := range task.ExecutionPath {
		if s.StepID == stepID {
			return s
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (c *Controller) emit(t events.Type, sessionID string, iteration int, payload map[string]interface{}) {
	if c.bus == nil {
		return
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["iteration"] = iteration
	c.bus.Emit(events.Event{Type: t, SessionID: sessionID, Payload: payload, Time: time.Now()})
}
