package planner

import "context"

// Planner turns a natural-language fragment into a typed domain sub-plan.
// Every sub-package (geometry, material, physics, study) implements this;
// physics and study may return core.ErrNotImplemented, which Run must
// handle by substituting a minimal empty sub-plan and continuing.
type Planner interface {
	// Parse takes the step's input fragment and the combined A2A context
	// string (external context plus other agents' outcomes/errors), and
	// returns the domain sub-plan as the concrete *GeometryPlan,
	// *MaterialPlan, *PhysicsPlan, or *StudyPlan for this planner's domain.
	Parse(ctx context.Context, input, combinedContext string) (interface{}, error)
}
