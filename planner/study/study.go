// Package study is a reserved domain planner. The original
// (agent/planner/study_agent.py) never implemented study-configuration
// parsing either; Parse raises core.ErrNotImplemented, which the Planner
// Orchestrator's Run must handle by substituting an empty StudyPlan and
// continuing.
package study

import (
	"context"
	"fmt"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/planner"
)

// Agent is the study domain planner stub.
type Agent struct{}

// New constructs the study Agent stub.
func New() *Agent { return &Agent{} }

// Parse implements planner.Planner.
func (a *Agent) Parse(ctx context.Context, input, combinedContext string) (interface{}, error) {
	return nil, fmt.Errorf("study planner: %w", core.ErrNotImplemented)
}

var _ planner.Planner = (*Agent)(nil)
