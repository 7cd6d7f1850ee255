// Package events implements the in-process event bus that carries
// progress notifications from planners and the RAOI controller out to
// subscribers: the bridge adapter, loggers, and any UI renderer.
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/telemetry"
)

func init() {
	telemetry.DeclareMetrics("events", telemetry.ModuleConfig{
		Metrics: []telemetry.MetricDefinition{
			{
				Name:   "modelcore_events_emitted_total",
				Type:   "counter",
				Help:   "Total events emitted on the bus",
				Labels: []string{"type"},
			},
		},
	})
}

// Type identifies the kind of Event flowing through the bus.
type Type string

const (
	PlanStart     Type = "PLAN_START"
	PlanEnd       Type = "PLAN_END"
	ThinkChunk    Type = "THINK_CHUNK"
	LLMStreamChunk Type = "LLM_STREAM_CHUNK"
	ActionStart   Type = "ACTION_START"
	ActionEnd     Type = "ACTION_END"
	ExecResult    Type = "EXEC_RESULT"
	Observation   Type = "OBSERVATION"
	Content       Type = "CONTENT"
	TaskPhase     Type = "TASK_PHASE"
	StepStart     Type = "STEP_START"
	StepEnd       Type = "STEP_END"
	Error         Type = "ERROR"
	MaterialStart Type = "MATERIAL_START"
	MaterialEnd   Type = "MATERIAL_END"
	Geometry3D    Type = "GEOMETRY_3D"
	CouplingAdded Type = "COUPLING_ADDED"
)

// Event is one notification carried on the bus. Payload is kept as a
// loosely-typed map so every producer (planners, RAOI, bridge) can attach
// whatever fields its event type needs without a type explosion here.
type Event struct {
	Type      Type
	SessionID string
	Payload   map[string]interface{}
	Time      time.Time
}

// Handler receives emitted events. A Handler must not block the bus for
// long; emit runs handlers synchronously in registration order.
type Handler func(Event)

// Bus is a type-tagged publish/subscribe dispatcher. The zero value is not
// usable; construct with New.
type Bus struct {
	mu       sync.RWMutex
	global   []Handler
	byType   map[Type][]Handler
	logger   core.Logger
}

// New constructs an empty Bus. A nil logger defaults to core.NoOpLogger.
func New(logger core.Logger) *Bus {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Bus{
		byType: make(map[Type][]Handler),
		logger: logger,
	}
}

// Subscribe appends handler to the list invoked for events of the given type.
func (b *Bus) Subscribe(t Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[t] = append(b.byType[t], handler)
}

// SubscribeAll appends handler to the list invoked for every event,
// regardless of type. Global handlers run before per-type handlers.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, handler)
}

// Emit calls every global handler, then every handler registered for
// event.Type, in registration order. Handler panics and the bus never
// surfaces a handler error to the caller; both are logged instead, so one
// bad consumer cannot break emission for the others.
//
// Dispatch runs against a snapshot of the handler slices taken under a
// read lock, so a handler that subscribes or is subscribed concurrently
// from another goroutine never races with this emit.
func (b *Bus) Emit(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	global := make([]Handler, len(b.global))
	copy(global, b.global)
	typed := make([]Handler, len(b.byType[event.Type]))
	copy(typed, b.byType[event.Type])
	b.mu.RUnlock()

	for _, h := range global {
		b.dispatch(h, event)
	}
	for _, h := range typed {
		b.dispatch(h, event)
	}

	telemetry.Counter("modelcore_events_emitted_total", "type", string(event.Type))
}

func (b *Bus) dispatch(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", map[string]interface{}{
				"event_type": string(event.Type),
				"session_id": event.SessionID,
				"recovered":  fmt.Sprintf("%v", r),
			})
		}
	}()
	handler(event)
}
