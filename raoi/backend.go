package raoi

import (
	"context"

	"github.com/modelcore/agent/planner"
)

// BackendStatus is the status a Backend call reports for one operation.
type BackendStatus string

const (
	BackendSuccess BackendStatus = "success"
	BackendWarning BackendStatus = "warning"
	BackendError   BackendStatus = "error"
)

// BackendResult is the status/message/artifact-path triple every Backend
// operation returns, per spec.md's backend contract.
type BackendResult struct {
	Status       BackendStatus
	Message      string
	ArtifactPath string
	Data         map[string]interface{}
}

// Backend is the external simulation component the controller drives.
// Treated as a fixed operation set: create, add material, add physics,
// mesh, configure study, solve, preview. A Backend implementation owns
// its own artifact file locking; when it cannot replace the current
// target (the .mph is locked) it returns a sibling "_updated" path in
// ArtifactPath and the controller adopts it.
type Backend interface {
	CreateGeometry(ctx context.Context, modelName string, plan *planner.GeometryPlan, geometryInput string) (BackendResult, error)
	AddMaterial(ctx context.Context, artifactPath string, plan *planner.MaterialPlan, materialInput string) (BackendResult, error)
	AddPhysics(ctx context.Context, artifactPath string, plan *planner.PhysicsPlan, physicsInput string) (BackendResult, error)
	GenerateMesh(ctx context.Context, artifactPath string) (BackendResult, error)
	ConfigureStudy(ctx context.Context, artifactPath string, plan *planner.StudyPlan, studyInput string) (BackendResult, error)
	Solve(ctx context.Context, artifactPath string) (BackendResult, error)
	Preview(ctx context.Context, artifactPath string) (BackendResult, error)
}
