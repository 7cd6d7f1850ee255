package main

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcore/agent/ai"
	"github.com/modelcore/agent/backend/fake"
	"github.com/modelcore/agent/bridge"
	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/events"
	"github.com/modelcore/agent/orchestrator"
	"github.com/modelcore/agent/planner"
	"github.com/modelcore/agent/planner/geometry"
	"github.com/modelcore/agent/planner/material"
	"github.com/modelcore/agent/planner/physics"
	"github.com/modelcore/agent/planner/study"
	"github.com/modelcore/agent/prompts"
	"github.com/modelcore/agent/raoi"
	"github.com/modelcore/agent/router"
	"github.com/modelcore/agent/session"
	"github.com/modelcore/agent/skills"
	"github.com/modelcore/agent/telemetry"
)

// app holds every component one process needs, constructed once from cfg
// and shared by every cobra subcommand.
type app struct {
	cfg     *core.Config
	logger  core.ComponentAwareLogger
	bus     *events.Bus
	gateway *ai.Gateway
	store   session.Store
	backend raoi.Backend
	orch    *orchestrator.Orchestrator
	adapter *bridge.Adapter

	shutdown func(context.Context) error
}

// newApp wires every package this module builds into one running
// process, mirroring the teacher's own BaseAgent.Initialize composition
// (construct every collaborator once, inject by constructor, no
// package-level singletons).
func newApp(ctx context.Context, cfg *core.Config) (*app, error) {
	logger := core.NewProductionLogger(cfg.Name)

	var shutdown func(context.Context) error = func(context.Context) error { return nil }
	if cfg.Telemetry.Enabled {
		if err := telemetry.Initialize(telemetry.Config{
			Enabled:      cfg.Telemetry.Enabled,
			ServiceName:  cfg.Telemetry.ServiceName,
			Endpoint:     cfg.Telemetry.Endpoint,
			SamplingRate: cfg.Telemetry.SamplingRate,
		}); err != nil {
			logger.Warn("telemetry init failed, continuing without it", map[string]interface{}{"error": err.Error()})
		} else {
			shutdown = telemetry.Shutdown
		}
	}

	bus := events.New(logger.WithComponent("modelcore/events"))

	var gateway *ai.Gateway
	if cfg.AI.APIKey != "" || cfg.AI.Provider == "ollama" {
		gw, err := ai.NewGateway(ai.AIConfig{
			Provider:    cfg.AI.Provider,
			APIKey:      cfg.AI.APIKey,
			BaseURL:     cfg.AI.BaseURL,
			Timeout:     cfg.AI.Timeout,
			MaxRetries:  cfg.AI.MaxRetries,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Logger:      logger.WithComponent("modelcore/ai"),
		})
		if err != nil {
			return nil, fmt.Errorf("constructing AI gateway: %w", err)
		}
		gateway = gw
	}

	// Each package below declares its own structurally-identical Caller
	// interface; a *ai.Gateway satisfies all of them directly. When no
	// gateway is configured, each variable below is left as a true nil
	// interface (not a non-nil interface wrapping a nil *ai.Gateway) so
	// every package's existing "if gateway == nil" fallback still fires,
	// rather than panicking on first call.
	var routerCaller router.Caller
	var plannerCaller planner.Caller
	var geometryCaller geometry.Caller
	var materialCaller material.Caller
	var raoiCaller raoi.Caller
	var orchestratorCaller orchestrator.Caller
	if gateway != nil {
		routerCaller, plannerCaller, geometryCaller, materialCaller, raoiCaller, orchestratorCaller =
			gateway, gateway, gateway, gateway, gateway, gateway
	}

	reg := prompts.NewRegistry("")

	embedder := chooseEmbedder(cfg, logger.WithComponent("modelcore/skills"))
	skillStore, err := skills.NewPersistentStore(cfg.VectorDBDir+"/skills.db", embedder, cfg.Skills.EmbeddingDimension, logger.WithComponent("modelcore/skills"))
	if err != nil {
		return nil, fmt.Errorf("constructing skill store: %w", err)
	}
	loaded, err := skills.LoadDir(cfg.SkillsRoot)
	if err != nil {
		logger.Warn("skill source load failed, continuing with none indexed", map[string]interface{}{"error": err.Error()})
	} else if err := skillStore.EnsureIndexed(ctx, loaded); err != nil {
		logger.Warn("skill indexing failed", map[string]interface{}{"error": err.Error()})
	}
	injector := skills.NewInjector(skillStore, loaded, cfg.Skills.TopK)

	var store session.Store
	if cfg.Postgres.Enabled {
		pg, err := session.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("connecting session store: %w", err)
		}
		store = pg
	} else {
		fileStore, err := session.NewFileStore(cfg.ContextRoot)
		if err != nil {
			return nil, fmt.Errorf("constructing session store: %w", err)
		}
		store = fileStore
	}

	memory := session.NewMemoryQueue(ctx, store, 64, logger.WithComponent("modelcore/session"))

	rt := router.New(routerCaller, logger.WithComponent("modelcore/router"))

	planners := map[planner.Agent]planner.Planner{
		planner.Geometry: geometry.New(geometryCaller, reg, injector, logger.WithComponent("modelcore/planner/geometry")),
		planner.Material: material.New(materialCaller, reg, injector, logger.WithComponent("modelcore/planner/material")),
		planner.Physics:  physics.New(),
		planner.Study:    study.New(),
	}
	plans := planner.New(plannerCaller, reg, planners, logger.WithComponent("modelcore/planner"))

	modelsDir := cfg.VectorDBDir + "/models"
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating models directory: %w", err)
	}
	backend := fake.New(modelsDir)

	ctrl := raoi.New(backend, raoiCaller, reg, bus, logger.WithComponent("modelcore/raoi"))
	orch := orchestrator.New(rt, plans, ctrl, orchestratorCaller, reg, bus, store, memory, logger.WithComponent("modelcore/orchestrator"))

	adapter := bridge.New(orch, store, bus, backend, cfg, logger.WithComponent("modelcore/bridge"))
	adapter.ModelsDir = modelsDir

	return &app{
		cfg: cfg, logger: logger, bus: bus, gateway: gateway, store: store,
		backend: backend, orch: orch, adapter: adapter, shutdown: shutdown,
	}, nil
}

func chooseEmbedder(cfg *core.Config, logger core.Logger) ai.EmbeddingProvider {
	if cfg.AI.Provider == "openai" && cfg.AI.APIKey != "" {
		return ai.NewOpenAIEmbedder(cfg.AI.APIKey, cfg.AI.BaseURL, "text-embedding-3-small", cfg.Skills.EmbeddingDimension, logger)
	}
	return ai.NewHashEmbedder(cfg.Skills.EmbeddingDimension)
}
