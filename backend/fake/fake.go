// Package fake implements an in-memory simulation backend sufficient to
// drive the RAOI Controller end to end, per spec.md §1's explicit
// exclusion of a real COMSOL/native backend from this module's scope.
// It stands in for agent/executor/comsol_runner.py's JVM-backed model
// builder: geometry is written to a small JSON artifact file on disk so
// the controller's file-exists observation check has something real to
// stat, and every later stage (material/physics/mesh/study/solve) is
// tracked against that same artifact path in memory.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modelcore/agent/planner"
	"github.com/modelcore/agent/raoi"
)

// modelState tracks what has been done to one artifact, so a later stage
// can reject being called out of order the way comsol_runner.py's
// component/geom/physics/mesh/study chain would.
type modelState struct {
	shapes    int
	materials int
	physics   int
	meshed    bool
	studied   bool
	solved    bool
}

// Backend is the fake simulation backend. Locked simulates the original's
// save-collision fallback (§5): artifact paths present in Locked cause
// writes to go to a sibling "_updated" path instead of failing outright.
type Backend struct {
	OutputDir string
	Locked    map[string]bool

	mu     sync.Mutex
	models map[string]*modelState
}

// New constructs a Backend that writes artifacts under outputDir.
func New(outputDir string) *Backend {
	return &Backend{OutputDir: outputDir, Locked: map[string]bool{}, models: map[string]*modelState{}}
}

var _ raoi.Backend = (*Backend)(nil)

func (b *Backend) state(path string) *modelState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.models[path]
	if !ok {
		st = &modelState{}
		b.models[path] = st
	}
	return st
}

// resolvePath applies the locked-artifact fallback: a path marked Locked
// is rewritten to "<name>_updated<ext>", mirroring the original's
// save_model behaviour when the target .mph file is held open elsewhere.
func (b *Backend) resolvePath(path string) (string, bool) {
	b.mu.Lock()
	locked := b.Locked[path]
	b.mu.Unlock()
	if !locked {
		return path, false
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "_updated" + ext, true
}

func safeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, " ", "_"))
	if name == "" {
		name = "model"
	}
	return name
}

func (b *Backend) writeArtifact(path string, payload map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// CreateGeometry ports comsol_runner.py's create_model_from_plan: one shape
// per plan.Shapes entry, geom().run(), then save_model to <safe name>.mph.
func (b *Backend) CreateGeometry(ctx context.Context, modelName string, plan *planner.GeometryPlan, geometryInput string) (raoi.BackendResult, error) {
	if plan == nil || len(plan.Shapes) == 0 {
		return raoi.BackendResult{Status: raoi.BackendError, Message: "geometry plan has no shapes"}, nil
	}
	for _, s := range plan.Shapes {
		switch s.Type {
		case "rectangle", "circle", "ellipse":
		default:
			return raoi.BackendResult{Status: raoi.BackendError, Message: fmt.Sprintf("unsupported shape type %q", s.Type)}, nil
		}
	}

	path := filepath.Join(b.OutputDir, safeName(modelName)+".mph")
	finalPath, rerouted := b.resolvePath(path)
	if err := b.writeArtifact(finalPath, map[string]interface{}{
		"model_name": modelName,
		"dimension":  plan.Dimension,
		"shapes":     plan.Shapes,
	}); err != nil {
		return raoi.BackendResult{Status: raoi.BackendError, Message: err.Error()}, nil
	}

	st := b.state(finalPath)
	st.shapes = len(plan.Shapes)

	msg := fmt.Sprintf("created %d shape(s)", len(plan.Shapes))
	if rerouted {
		msg += " (target was locked, saved alongside as a sibling file)"
	}
	return raoi.BackendResult{Status: raoi.BackendSuccess, Message: msg, ArtifactPath: finalPath}, nil
}

func (b *Backend) requireArtifact(path string) error {
	if path == "" {
		return fmt.Errorf("no artifact path set")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("artifact not found: %s", path)
	}
	return nil
}

// AddMaterial ports material_agent.py's assignment step: requires at least
// one material definition, applied against the geometry artifact already on
// disk. Assignments are not checked.
func (b *Backend) AddMaterial(ctx context.Context, artifactPath string, plan *planner.MaterialPlan, materialInput string) (raoi.BackendResult, error) {
	if err := b.requireArtifact(artifactPath); err != nil {
		return raoi.BackendResult{Status: raoi.BackendError, Message: err.Error()}, nil
	}
	if plan == nil || len(plan.Materials) == 0 {
		return raoi.BackendResult{Status: raoi.BackendError, Message: "missing material properties"}, nil
	}
	st := b.state(artifactPath)
	st.materials = len(plan.Materials)
	return raoi.BackendResult{Status: raoi.BackendSuccess, Message: fmt.Sprintf("assigned %d material(s)", len(plan.Materials))}, nil
}

// AddPhysics requires the artifact to already carry at least one material,
// mirroring COMSOL's own requirement that domains have material before a
// physics interface can reference their properties.
func (b *Backend) AddPhysics(ctx context.Context, artifactPath string, plan *planner.PhysicsPlan, physicsInput string) (raoi.BackendResult, error) {
	if err := b.requireArtifact(artifactPath); err != nil {
		return raoi.BackendResult{Status: raoi.BackendError, Message: err.Error()}, nil
	}
	if plan == nil || len(plan.Fields) == 0 {
		return raoi.BackendResult{Status: raoi.BackendError, Message: "physics plan has no fields"}, nil
	}
	st := b.state(artifactPath)
	if st.materials == 0 {
		return raoi.BackendResult{Status: raoi.BackendError, Message: "missing material properties"}, nil
	}
	st.physics = len(plan.Fields)
	return raoi.BackendResult{Status: raoi.BackendSuccess, Message: fmt.Sprintf("added %d physics field(s)", len(plan.Fields))}, nil
}

func (b *Backend) GenerateMesh(ctx context.Context, artifactPath string) (raoi.BackendResult, error) {
	if err := b.requireArtifact(artifactPath); err != nil {
		return raoi.BackendResult{Status: raoi.BackendError, Message: err.Error()}, nil
	}
	st := b.state(artifactPath)
	st.meshed = true
	return raoi.BackendResult{Status: raoi.BackendSuccess, Message: "mesh generated"}, nil
}

func (b *Backend) ConfigureStudy(ctx context.Context, artifactPath string, plan *planner.StudyPlan, studyInput string) (raoi.BackendResult, error) {
	if err := b.requireArtifact(artifactPath); err != nil {
		return raoi.BackendResult{Status: raoi.BackendError, Message: err.Error()}, nil
	}
	st := b.state(artifactPath)
	if !st.meshed {
		return raoi.BackendResult{Status: raoi.BackendError, Message: "mesh required before study configuration"}, nil
	}
	if plan == nil || len(plan.Studies) == 0 {
		return raoi.BackendResult{Status: raoi.BackendError, Message: "study plan has no studies"}, nil
	}
	st.studied = true
	return raoi.BackendResult{Status: raoi.BackendSuccess, Message: fmt.Sprintf("configured %d stud(y/ies)", len(plan.Studies))}, nil
}

// Solve requires materials to be present, matching the original's own
// solver failure mode ("missing material properties") used as the S4
// rollback scenario's trigger.
func (b *Backend) Solve(ctx context.Context, artifactPath string) (raoi.BackendResult, error) {
	if err := b.requireArtifact(artifactPath); err != nil {
		return raoi.BackendResult{Status: raoi.BackendError, Message: err.Error()}, nil
	}
	st := b.state(artifactPath)
	if !st.studied {
		return raoi.BackendResult{Status: raoi.BackendError, Message: "study configuration required before solve"}, nil
	}
	if st.materials == 0 {
		return raoi.BackendResult{Status: raoi.BackendError, Message: "missing material properties"}, nil
	}
	st.solved = true
	return raoi.BackendResult{Status: raoi.BackendSuccess, Message: "solve completed"}, nil
}

func (b *Backend) Preview(ctx context.Context, artifactPath string) (raoi.BackendResult, error) {
	if err := b.requireArtifact(artifactPath); err != nil {
		return raoi.BackendResult{Status: raoi.BackendError, Message: err.Error()}, nil
	}
	st := b.state(artifactPath)
	return raoi.BackendResult{
		Status:  raoi.BackendSuccess,
		Message: "preview ready",
		Data: map[string]interface{}{
			"shapes": st.shapes, "materials": st.materials, "physics": st.physics,
			"meshed": st.meshed, "studied": st.studied, "solved": st.solved,
		},
	}, nil
}
