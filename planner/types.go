// Package planner decomposes a modeling request into an ordered serial plan
// across the four domain agents (geometry, material, physics, study),
// invokes each in turn, and carries an A2A shared context between them so
// a later agent can observe an earlier agent's outcome or error.
package planner

import (
	"strconv"
	"strings"
	"time"
)

// Agent is one of the four domain planner kinds. Order matters: it is also
// the maximal-scope ordering used by intent filtering in Decompose.
type Agent string

const (
	Geometry Agent = "geometry"
	Material Agent = "material"
	Physics  Agent = "physics"
	Study    Agent = "study"
)

// scopeOrder is geometry → material → physics → study, per spec.
var scopeOrder = []Agent{Geometry, Material, Physics, Study}

// --- Domain sub-plans, grounded on schemas/geometry.py, schemas/material.py,
// schemas/physics.py, schemas/study.py. ---

// GeometryShape is a single 2D primitive in a geometry plan.
type GeometryShape struct {
	Type       string             `json:"type"` // rectangle|circle|ellipse
	Parameters map[string]float64 `json:"parameters"`
	Position   map[string]float64 `json:"position,omitempty"`
	Name       string             `json:"name,omitempty"`
}

// GeometryOperation is a boolean or transform operation applied to shapes.
type GeometryOperation struct {
	Type   string   `json:"type"`
	Inputs []string `json:"inputs,omitempty"`
}

// GeometryPlan is the geometry planner's output.
type GeometryPlan struct {
	ModelName  string              `json:"model_name"`
	Units      string              `json:"units"`
	Dimension  int                 `json:"dimension"` // 2 or 3
	Shapes     []GeometryShape     `json:"shapes"`
	Operations []GeometryOperation `json:"operations,omitempty"`
}

// MaterialProperty is a single named physical property.
type MaterialProperty struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"` // number, expression string, or array
	Unit  string      `json:"unit,omitempty"`
}

// MaterialDefinition is a material, either referencing a builtin library
// entry or carrying its own property list.
type MaterialDefinition struct {
	Name          string             `json:"name"`
	Label         string             `json:"label,omitempty"`
	BuiltinName   string             `json:"builtin_name,omitempty"`
	Properties    []MaterialProperty `json:"properties,omitempty"`
	PropertyGroup string             `json:"property_group,omitempty"`
}

// MaterialAssignment assigns a material to a set of domain ids, or all of
// them.
type MaterialAssignment struct {
	MaterialName string `json:"material_name"`
	DomainIDs    []int  `json:"domain_ids,omitempty"`
	AssignAll    bool   `json:"assign_all"`
}

// MaterialPlan is the material planner's output.
type MaterialPlan struct {
	Materials   []MaterialDefinition `json:"materials"`
	Assignments []MaterialAssignment `json:"assignments"`
}

// PhysicsField is a single physics field added to the model.
type PhysicsField struct {
	Type       string                 `json:"type"` // heat|electromagnetic|structural|fluid
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// PhysicsPlan is the physics planner's output.
type PhysicsPlan struct {
	Fields []PhysicsField `json:"fields"`
}

// StudyType is a single solver study (stationary, time-dependent, ...).
type StudyType struct {
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// StudyPlan is the study planner's output.
type StudyPlan struct {
	Studies []StudyType `json:"studies"`
}

// --- Serial plan & shared context, grounded on agent/planner/context.go. ---

// PlanStep is one entry in the serial plan produced by Decompose.
type PlanStep struct {
	StepIndex    int    `json:"step_index"`
	AgentType    Agent  `json:"agent_type"`
	Description  string `json:"description"`
	InputSnippet string `json:"input_snippet"`
}

// SerialPlan is the ordered list of steps Decompose produces.
type SerialPlan struct {
	Steps           []PlanStep `json:"steps"`
	PlanDescription string     `json:"plan_description,omitempty"`
}

// ExecutionRecord is appended to SharedContext after each step runs,
// whether it succeeded or failed.
type ExecutionRecord struct {
	StepIndex     int
	AgentType     Agent
	Success       bool
	ResultSummary string
	Error         string
	RawResult     interface{}
	Timestamp     time.Time
}

// ContextLine renders the record for injection into another agent's prompt.
func (r ExecutionRecord) ContextLine() string {
	if r.Success {
		summary := r.ResultSummary
		if summary == "" {
			summary = "completed"
		}
		return "[step " + strconv.Itoa(r.StepIndex) + "] " + string(r.AgentType) + ": success — " + summary
	}
	errMsg := r.Error
	if errMsg == "" {
		errMsg = "unknown error"
	}
	return "[step " + strconv.Itoa(r.StepIndex) + "] " + string(r.AgentType) + ": failed — " + errMsg
}

// SharedContext is the A2A contract between domain planners: later agents
// read earlier agents' outcomes and the most recent error through it.
// Mutated only by the Orchestrator; read by the planners themselves.
type SharedContext struct {
	UserInput        string
	ExecutionHistory []ExecutionRecord
	LastError        string
}

// NewSharedContext constructs an empty shared context for userInput.
func NewSharedContext(userInput string) *SharedContext {
	return &SharedContext{UserInput: userInput}
}

// GetContextForAgent renders the "what other agents did and any errors"
// block for forAgent, excluding forAgent's own history entries.
func (c *SharedContext) GetContextForAgent(forAgent Agent) string {
	if len(c.ExecutionHistory) == 0 {
		return "(no other agent has run yet.)"
	}
	var lines []string
	for _, r := range c.ExecutionHistory {
		if r.AgentType == forAgent {
			continue
		}
		lines = append(lines, r.ContextLine())
	}
	if c.LastError != "" {
		lines = append(lines, "most recent error: "+c.LastError)
	}
	if len(lines) == 0 {
		return "(no other agent has run yet.)"
	}
	return strings.Join(lines, "\n")
}

// AppendSuccess records a successful step.
func (c *SharedContext) AppendSuccess(stepIndex int, agent Agent, summary string, raw interface{}) {
	c.ExecutionHistory = append(c.ExecutionHistory, ExecutionRecord{
		StepIndex:     stepIndex,
		AgentType:     agent,
		Success:       true,
		ResultSummary: summary,
		RawResult:     raw,
		Timestamp:     time.Now(),
	})
	c.LastError = ""
}

// AppendFailure records a failed step.
func (c *SharedContext) AppendFailure(stepIndex int, agent Agent, errMsg string) {
	c.ExecutionHistory = append(c.ExecutionHistory, ExecutionRecord{
		StepIndex: stepIndex,
		AgentType: agent,
		Error:     errMsg,
		Timestamp: time.Now(),
	})
	c.LastError = errMsg
}

// TaskPlan is the Orchestrator's output: the per-domain sub-plans produced
// by Run, keyed by pointer so an unexecuted domain is simply nil.
type TaskPlan struct {
	Geometry *GeometryPlan
	Material *MaterialPlan
	Physics  *PhysicsPlan
	Study    *StudyPlan

	// Dimension, OutputDir and IntegrationSuggestions are recovered from
	// agent/react/iteration_controller.py and agent/planner/orchestrator.py
	// beyond what spec.md's distillation kept (Open Question 3).
	Dimension              string
	OutputDir              string
	IntegrationSuggestions []string
}
