// Package orchestrator implements the Session Orchestrator: the per-turn
// entry point that routes a user message, then either answers it
// conversationally or drives the full plan → expand → RAOI pipeline, per
// spec.md §4.10. It never retries itself — every retry this system
// performs lives inside the RAOI Controller.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/events"
	"github.com/modelcore/agent/planner"
	"github.com/modelcore/agent/prompts"
	"github.com/modelcore/agent/raoi"
	"github.com/modelcore/agent/router"
	"github.com/modelcore/agent/session"
)

// Caller is the subset of ai.Gateway the orchestrator uses directly, for
// the QA agent and the end-of-turn summary.
type Caller interface {
	Call(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error)
}

// Reply is the single terminal response a turn produces, per spec.md
// §6.1's `{ok, message}` bridge contract.
type Reply struct {
	OK        bool
	Message   string
	ModelPath string
}

// Orchestrator ties the Router, Planner Orchestrator, and RAOI Controller
// together into one per-turn entry point.
type Orchestrator struct {
	router  *router.Router
	plans   *planner.Orchestrator
	raoi    *raoi.Controller
	gateway Caller
	prompts *prompts.Registry
	bus     *events.Bus
	store   session.Store
	memory  *session.MemoryQueue
	logger  core.Logger
}

// New constructs an Orchestrator. gateway may be nil, in which case QA
// replies and turn summaries fall back to a canned message; memory may be
// nil, in which case session entries are appended and saved synchronously
// inline instead of via a background queue.
func New(r *router.Router, p *planner.Orchestrator, c *raoi.Controller, gateway Caller, reg *prompts.Registry, bus *events.Bus, store session.Store, memory *session.MemoryQueue, logger core.Logger) *Orchestrator {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Orchestrator{router: r, plans: p, raoi: c, gateway: gateway, prompts: reg, bus: bus, store: store, memory: memory, logger: logger}
}

// HandleTurn runs one dialog turn per spec.md §4.10: route, then either
// the qa branch or the technical branch, always ending in exactly one
// Reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, userInput string) Reply {
	sc, err := o.store.Load(ctx, sessionID)
	if err != nil {
		o.logger.ErrorWithContext(ctx, "orchestrator: failed to load session", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		sc = &session.Context{SessionID: sessionID}
	}

	intent := o.router.Classify(ctx, userInput)

	var reply Reply
	if intent == router.QA {
		reply = o.handleQA(ctx, sessionID, userInput, sc)
	} else {
		reply = o.handleTechnical(ctx, sessionID, userInput, sc)
	}

	entry := session.Entry{
		Timestamp: time.Now(),
		UserInput: userInput,
		Success:   reply.OK,
		Error:     errString(reply),
	}
	if reply.ModelPath != "" {
		entry.ArtifactPath = reply.ModelPath
	}

	if o.memory != nil {
		o.memory.Enqueue(sessionID, entry)
	} else {
		sc.AppendEntry(entry)
		sc.RebuildSummary()
		if err := o.store.Save(ctx, sessionID, sc); err != nil {
			o.logger.ErrorWithContext(ctx, "orchestrator: failed to save session", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		}
	}

	return reply
}

func errString(r Reply) string {
	if r.OK {
		return ""
	}
	return r.Message
}

// handleQA is step 2 of spec.md §4.10: emit TASK_PHASE{phase: qa}, ask the
// QA agent, emit CONTENT, return the reply.
func (o *Orchestrator) handleQA(ctx context.Context, sessionID, userInput string, sc *session.Context) Reply {
	o.emit(events.TaskPhase, sessionID, map[string]interface{}{"phase": "qa"})

	answer := "I don't have a model gateway configured to answer that right now."
	if o.gateway != nil {
		prompt, err := o.prompts.Format("qa", "answer", map[string]string{"context": sc.Summary.Text, "query": userInput})
		if err == nil {
			if resp, callErr := o.gateway.Call(ctx, prompt, &core.AIOptions{Temperature: 0.3}); callErr == nil {
				answer = resp.Content
			} else {
				o.logger.WarnWithContext(ctx, "orchestrator: qa gateway call failed", map[string]interface{}{"error": callErr.Error()})
			}
		}
	}

	o.emit(events.Content, sessionID, map[string]interface{}{"text": answer})
	return Reply{OK: true, Message: answer}
}

// handleTechnical is step 3 of spec.md §4.10: PLAN_START, run the RAOI
// Controller to completion or failure, then always ask for a summary and
// emit it, with EXEC_RESULT preceding success and ERROR preceding failure.
func (o *Orchestrator) handleTechnical(ctx context.Context, sessionID, userInput string, sc *session.Context) Reply {
	o.emit(events.PlanStart, sessionID, map[string]interface{}{"user_input": userInput})

	task := o.buildTaskPlan(ctx, userInput)
	runErr := o.raoi.Run(ctx, task, sessionID)

	o.emit(events.PlanEnd, sessionID, map[string]interface{}{"status": string(task.Status)})

	summaryText := o.summarize(ctx, task)

	if runErr == nil && task.Status == raoi.Completed {
		o.emit(events.ExecResult, sessionID, map[string]interface{}{"status": "success", "model_path": task.ArtifactPath})
		o.emit(events.Content, sessionID, map[string]interface{}{"text": summaryText})
		return Reply{OK: true, Message: summaryText, ModelPath: task.ArtifactPath}
	}

	message := task.Error
	if message == "" && runErr != nil {
		message = runErr.Error()
	}
	o.emit(events.Error, sessionID, map[string]interface{}{"message": message})
	o.emit(events.Content, sessionID, map[string]interface{}{"text": summaryText})
	return Reply{OK: false, Message: summaryText}
}

// buildTaskPlan runs the Planner Orchestrator and expands its output into
// an RAOI execution path. On a decompose failure it falls back to the
// controller's own orchestrator-bypass planning path (raoi.PlanFromScratch),
// mirroring the original falling back to LLM-only decomposition when the
// structured planning pass cannot run at all.
func (o *Orchestrator) buildTaskPlan(ctx context.Context, userInput string) *raoi.TaskPlan {
	if o.plans == nil {
		return o.raoi.PlanFromScratch(ctx, userInput, "model")
	}

	domainTask, _, _, err := o.plans.Run(ctx, userInput, "", nil)
	if err != nil {
		o.logger.WarnWithContext(ctx, "orchestrator: planner decompose failed, falling back to controller-only planning", map[string]interface{}{"error": err.Error()})
		return o.raoi.PlanFromScratch(ctx, userInput, "model")
	}

	modelName := "model"
	if domainTask.Geometry != nil && domainTask.Geometry.ModelName != "" {
		modelName = domainTask.Geometry.ModelName
	}

	stopAfter := raoi.InferStopAfter(userInput)
	steps := raoi.Expand(domainTask)
	task := raoi.NewTaskPlan(uuid.NewString(), modelName, userInput, steps, stopAfter)
	task.Geometry = domainTask.Geometry
	task.Material = domainTask.Material
	task.Physics = domainTask.Physics
	task.Study = domainTask.Study
	task.Dimension = dimensionCode(domainTask.Dimension)
	task.OutputDir = domainTask.OutputDir
	task.IntegrationSuggestions = domainTask.IntegrationSuggestions
	return task
}

// Plan builds a task plan from userInput without running it through RAOI,
// for the bridge's `plan` command (preview a decomposition without
// executing it against the backend).
func (o *Orchestrator) Plan(ctx context.Context, userInput string) *raoi.TaskPlan {
	return o.buildTaskPlan(ctx, userInput)
}

// Exec runs an already-built task plan through the RAOI Controller without
// decomposing a user message again. The bridge's `exec` command does not
// call it; that command replays the captured request text through Plan or
// HandleTurn.
func (o *Orchestrator) Exec(ctx context.Context, task *raoi.TaskPlan, sessionID string) error {
	return o.raoi.Run(ctx, task, sessionID)
}

func dimensionCode(s string) int {
	if s == "3D" {
		return 3
	}
	return 2
}

// summarize asks the Summary agent for a short human-readable recap,
// falling back to a mechanical description of the final step statuses
// when no gateway is configured or the call fails.
func (o *Orchestrator) summarize(ctx context.Context, task *raoi.TaskPlan) string {
	fallback := fmt.Sprintf("task %s: %s (%d/%d steps completed)", task.TaskID, task.Status, completedCount(task), len(task.ExecutionPath))
	if o.gateway == nil {
		return fallback
	}

	prompt, err := o.prompts.Format("summary", "turn", map[string]string{"plan": describePlan(task)})
	if err != nil {
		return fallback
	}
	resp, err := o.gateway.Call(ctx, prompt, &core.AIOptions{Temperature: 0.2})
	if err != nil {
		o.logger.WarnWithContext(ctx, "orchestrator: summary gateway call failed", map[string]interface{}{"error": err.Error()})
		return fallback
	}
	return resp.Content
}

func completedCount(task *raoi.TaskPlan) int {
	n := 0
	for _, s := range task.ExecutionPath {
		if s.Status == raoi.StepCompleted {
			n++
		}
	}
	return n
}

func describePlan(task *raoi.TaskPlan) string {
	out := fmt.Sprintf("status: %s\n", task.Status)
	for _, s := range task.ExecutionPath {
		out += fmt.Sprintf("- %s (%s): %s\n", s.StepID, s.StepType, s.Status)
	}
	return out
}

func (o *Orchestrator) emit(t events.Type, sessionID string, payload map[string]interface{}) {
	if o.bus == nil {
		return
	}
	o.bus.Emit(events.Event{Type: t, SessionID: sessionID, Payload: payload, Time: time.Now()})
}

