// Package physics is a reserved domain planner. The original
// (agent/planner/physics_agent.py) never implemented physics-field
// parsing either; Parse raises core.ErrNotImplemented, which the Planner
// Orchestrator's Run must handle by substituting an empty PhysicsPlan and
// continuing to the next step.
package physics

import (
	"context"
	"fmt"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/planner"
)

// Agent is the physics domain planner stub.
type Agent struct{}

// New constructs the physics Agent stub.
func New() *Agent { return &Agent{} }

// Parse implements planner.Planner.
func (a *Agent) Parse(ctx context.Context, input, combinedContext string) (interface{}, error) {
	return nil, fmt.Errorf("physics planner: %w", core.ErrNotImplemented)
}

var _ planner.Planner = (*Agent)(nil)
