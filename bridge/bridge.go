// Package bridge implements the line-delimited JSON Request/response loop
// per spec.md §6.1: one Request per input line, a single terminal Reply
// line per Request, with zero or more `_event:true` lines interleaved
// while the Request is in flight. Grounded on
// emergent-company-specmcp/internal/mcp/server.go's stdio scanner/encoder
// loop shape — no example repo in the pack shares this module's own
// protocol, so the adapter borrows the nearest pack analogue (a
// line-delimited JSON-over-stdio server loop) rather than inventing one
// from nothing.
package bridge

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/events"
	"github.com/modelcore/agent/orchestrator"
	"github.com/modelcore/agent/raoi"
	"github.com/modelcore/agent/session"
	"github.com/modelcore/agent/telemetry"
)

// sessionDeleter is the optional session.Store extension conversation_delete
// needs. session.FileStore implements it; a Store that can't delete simply
// reports the command as unsupported.
type sessionDeleter interface {
	Delete(ctx context.Context, sessionID string) ([]string, error)
}

// Request is the union of every field any recognised cmd value reads.
// Unused fields for a given cmd are simply left at their zero value.
type Request struct {
	Cmd            string                 `json:"cmd"`
	Input          string                 `json:"input"`
	Output         string                 `json:"output"`
	OutputPath     string                 `json:"output_path"`
	NoContext      bool                   `json:"no_context"`
	ConversationID string                 `json:"conversation_id"`
	Path           string                 `json:"path"`
	CodeOnly       bool                   `json:"code_only"`
	Limit          int                    `json:"limit"`
	Text           string                 `json:"text"`
	Config         map[string]interface{} `json:"config"`
	Width          int                    `json:"width"`
	Height         int                    `json:"height"`
}

// Reply is the single terminal line written per Request.
type Reply struct {
	OK           bool       `json:"ok"`
	Message      string     `json:"message,omitempty"`
	ImageBase64  string     `json:"image_base64,omitempty"`
	Models       []ModelRow `json:"models,omitempty"`
	DeletedPaths []string   `json:"deleted_paths,omitempty"`
}

type ModelRow struct {
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

type eventLine struct {
	Event     bool                   `json:"_event"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Iteration *int                   `json:"iteration,omitempty"`
}

// Adapter serves the bridge protocol over an arbitrary reader/writer pair,
// driving one Orchestrator and its shared session store/backend/config.
type Adapter struct {
	Orch       *orchestrator.Orchestrator
	Store      session.Store
	Bus        *events.Bus
	Backend    raoi.Backend
	Config     *core.Config
	ConfigPath string
	ModelsDir  string
	Logger     core.Logger

	writeMu   sync.Mutex
	activeMu  sync.Mutex
	activeID  string
	out       io.Writer
}

// New constructs an Adapter. A nil logger defaults to core.NoOpLogger.
func New(orch *orchestrator.Orchestrator, store session.Store, bus *events.Bus, backend raoi.Backend, cfg *core.Config, logger core.Logger) *Adapter {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	a := &Adapter{Orch: orch, Store: store, Bus: bus, Backend: backend, Config: cfg, ConfigPath: "./modelcore.yaml", ModelsDir: "./data/models", Logger: logger}
	if bus != nil {
		bus.SubscribeAll(a.onEvent)
	}
	return a
}

// onEvent streams every bus event whose session matches the Request
// currently in flight. A single handler is registered for the Adapter's
// whole lifetime (the Bus has no unsubscribe), gated by activeID rather
// than subscribing per Request, since the line-at-a-time protocol loop
// only ever has one Request in flight at a time.
func (a *Adapter) onEvent(e events.Event) {
	a.activeMu.Lock()
	active := a.activeID
	a.activeMu.Unlock()
	if active == "" || e.SessionID != active {
		return
	}
	line := eventLine{Event: true, Type: string(e.Type), Data: e.Payload}
	if it, ok := e.Payload["iteration"].(int); ok {
		line.Iteration = &it
	}
	a.writeLine(line)
}

func (a *Adapter) setActive(sessionID string) {
	a.activeMu.Lock()
	a.activeID = sessionID
	a.activeMu.Unlock()
}

func (a *Adapter) clearActive() {
	a.setActive("")
}

func (a *Adapter) writeLine(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		a.Logger.Error("bridge: failed to marshal line", map[string]interface{}{"error": err.Error()})
		return
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.out.Write(data)
	a.out.Write([]byte("\n"))
}

// RunStdio serves the bridge protocol over os.Stdin/os.Stdout, rejecting a
// TTY stdin per spec.md §6.1.
func (a *Adapter) RunStdio(ctx context.Context) error {
	info, err := os.Stdin.Stat()
	if err != nil {
		return fmt.Errorf("bridge: statting stdin: %w", err)
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return fmt.Errorf("bridge: stdin must not be a terminal")
	}
	return a.Run(ctx, os.Stdin, os.Stdout)
}

// Run serves the bridge protocol over r/w until r is exhausted or ctx is
// cancelled.
func (a *Adapter) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	a.out = w
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			a.writeLine(Reply{OK: false, Message: fmt.Sprintf("invalid Request: %s", err.Error())})
			continue
		}

		rep := a.Dispatch(ctx, req)
		a.writeLine(rep)
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("bridge: reading input: %w", err)
	}
	return nil
}

func conversationID(req Request) string {
	if req.ConversationID != "" {
		return req.ConversationID
	}
	return "default"
}

func (a *Adapter) Dispatch(ctx context.Context, req Request) Reply {
	switch req.Cmd {
	case "run":
		return a.cmdRun(ctx, req)
	case "plan":
		return a.cmdPlan(ctx, req)
	case "exec":
		return a.cmdExec(ctx, req)
	case "demo":
		return a.cmdDemo(ctx, req)
	case "doctor":
		return a.cmdDoctor(ctx)
	case "context_show", "context_get_summary":
		return a.cmdContextShow(ctx, req)
	case "context_set_summary":
		return a.cmdContextSetSummary(ctx, req)
	case "context_history":
		return a.cmdContextHistory(ctx, req)
	case "context_stats":
		return a.cmdContextStats(ctx, req)
	case "context_clear":
		return a.cmdContextClear(ctx, req)
	case "config_save":
		return a.cmdConfigSave(req)
	case "model_preview":
		return a.cmdModelPreview(ctx, req)
	case "models_list":
		return a.cmdModelsList(req)
	case "conversation_delete":
		return a.cmdConversationDelete(ctx, req)
	default:
		return Reply{OK: false, Message: fmt.Sprintf("unrecognised cmd %q", req.Cmd)}
	}
}

func (a *Adapter) cmdRun(ctx context.Context, req Request) Reply {
	sessionID := conversationID(req)
	a.setActive(sessionID)
	defer a.clearActive()

	r := a.Orch.HandleTurn(ctx, sessionID, req.Input)
	return Reply{OK: r.OK, Message: r.Message}
}

func (a *Adapter) cmdPlan(ctx context.Context, req Request) Reply {
	task := a.Orch.Plan(ctx, req.Input)
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	if req.OutputPath != "" {
		if err := os.WriteFile(req.OutputPath, data, 0o644); err != nil {
			return Reply{OK: false, Message: fmt.Sprintf("writing plan to %s: %s", req.OutputPath, err.Error())}
		}
	}
	return Reply{OK: true, Message: string(data)}
}

// cmdExec re-decomposes and, unless code_only is set, runs the Request
// text stored at req.Path. A full round trip of a previously serialized
// raoi.TaskPlan (including its polymorphic Action values) is out of scope
// here; exec treats path's contents as the original user message, same as
// `run`, which covers the command's practical use (replaying a captured
// Request) without a bespoke plan-object codec.
func (a *Adapter) cmdExec(ctx context.Context, req Request) Reply {
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return Reply{OK: false, Message: fmt.Sprintf("reading %s: %s", req.Path, err.Error())}
	}
	input := string(data)

	if req.CodeOnly {
		task := a.Orch.Plan(ctx, input)
		out, err := json.MarshalIndent(task, "", "  ")
		if err != nil {
			return Reply{OK: false, Message: err.Error()}
		}
		return Reply{OK: true, Message: string(out)}
	}

	sessionID := conversationID(req)
	a.setActive(sessionID)
	defer a.clearActive()
	r := a.Orch.HandleTurn(ctx, sessionID, input)
	return Reply{OK: r.OK, Message: r.Message}
}

const demoInput = "Build a 1m x 0.5m steel plate and run a stationary heat transfer study."

func (a *Adapter) cmdDemo(ctx context.Context, _ Request) Reply {
	sessionID := "demo"
	a.setActive(sessionID)
	defer a.clearActive()
	r := a.Orch.HandleTurn(ctx, sessionID, demoInput)
	return Reply{OK: r.OK, Message: r.Message}
}

func (a *Adapter) cmdDoctor(ctx context.Context) Reply {
	checks := map[string]string{}
	if a.Orch == nil {
		checks["orchestrator"] = "not configured"
	} else {
		checks["orchestrator"] = "ok"
	}
	if a.Backend == nil {
		checks["backend"] = "not configured"
	} else {
		checks["backend"] = "ok"
	}
	if _, err := a.Store.Load(ctx, "doctor"); err != nil {
		checks["session_store"] = "error: " + err.Error()
	} else {
		checks["session_store"] = "ok"
	}
	ok := true
	for _, name := range []string{"orchestrator", "backend", "session_store"} {
		if checks[name] != "ok" {
			ok = false
		}
	}

	// Informational, not gating: how many events this process has emitted
	// so far, via the telemetry counter events.Bus.Emit increments.
	checks["events_emitted"] = fmt.Sprintf("%d", telemetry.CounterValue("modelcore_events_emitted_total"))

	data, _ := json.MarshalIndent(checks, "", "  ")
	return Reply{OK: ok, Message: string(data)}
}

func (a *Adapter) cmdContextShow(ctx context.Context, req Request) Reply {
	sc, err := a.Store.Load(ctx, conversationID(req))
	if err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	data, _ := json.MarshalIndent(sc.Summary, "", "  ")
	return Reply{OK: true, Message: string(data)}
}

func (a *Adapter) cmdContextSetSummary(ctx context.Context, req Request) Reply {
	id := conversationID(req)
	sc, err := a.Store.Load(ctx, id)
	if err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	sc.SetSummaryText(req.Text)
	if err := a.Store.Save(ctx, id, sc); err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	return Reply{OK: true, Message: "summary updated"}
}

func (a *Adapter) cmdContextHistory(ctx context.Context, req Request) Reply {
	sc, err := a.Store.Load(ctx, conversationID(req))
	if err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	limit := req.Limit
	if limit <= 0 || limit > len(sc.History) {
		limit = len(sc.History)
	}
	recent := sc.History[len(sc.History)-limit:]
	data, _ := json.MarshalIndent(recent, "", "  ")
	return Reply{OK: true, Message: string(data)}
}

func (a *Adapter) cmdContextStats(ctx context.Context, req Request) Reply {
	sc, err := a.Store.Load(ctx, conversationID(req))
	if err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	stats := map[string]interface{}{
		"total_entries":    len(sc.History),
		"summary_total":    sc.Summary.TotalCount,
		"last_updated":     sc.Summary.LastUpdated,
		"latest_artifact":  sc.LatestArtifactPath,
	}
	data, _ := json.MarshalIndent(stats, "", "  ")
	return Reply{OK: true, Message: string(data)}
}

func (a *Adapter) cmdContextClear(ctx context.Context, req Request) Reply {
	id := conversationID(req)
	if err := a.Store.Save(ctx, id, &session.Context{SessionID: id}); err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	return Reply{OK: true, Message: "context cleared"}
}

// cmdConfigSave reuses core.Config's existing yaml tags: the Request's
// config object is re-marshaled to JSON (valid YAML) and parsed with
// yaml.v3 rather than json, so the same snake_case keys the config file
// already uses work here too, instead of inventing a parallel json-tagged
// schema for the same struct.
func (a *Adapter) cmdConfigSave(req Request) Reply {
	raw, err := json.Marshal(req.Config)
	if err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	cfg := core.DefaultConfig()
	if a.Config != nil {
		cfg = a.Config
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return Reply{OK: false, Message: fmt.Sprintf("parsing config: %s", err.Error())}
	}
	if err := cfg.Validate(); err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	if err := cfg.SaveYAML(a.ConfigPath); err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	a.Config = cfg
	return Reply{OK: true, Message: fmt.Sprintf("config saved to %s", a.ConfigPath)}
}

// cmdModelPreview has no renderer to call: a real backend (and any image
// output) is explicitly out of scope per spec.md §1. It reports the
// backend's own Preview state as a base64-encoded JSON blob in place of an
// actual image, which is enough to exercise the bridge contract's shape
// without fabricating a rendering pipeline nothing in this module owns.
func (a *Adapter) cmdModelPreview(ctx context.Context, req Request) Reply {
	if a.Backend == nil {
		return Reply{OK: false, Message: "no backend configured"}
	}
	res, err := a.Backend.Preview(ctx, req.Path)
	if err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	if res.Status != raoi.BackendSuccess {
		return Reply{OK: false, Message: res.Message}
	}
	data, _ := json.Marshal(res.Data)
	return Reply{OK: true, Message: res.Message, ImageBase64: base64.StdEncoding.EncodeToString(data)}
}

func (a *Adapter) cmdModelsList(req Request) Reply {
	entries, err := os.ReadDir(a.ModelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Reply{OK: true, Models: nil}
		}
		return Reply{OK: false, Message: err.Error()}
	}

	rows := make([]ModelRow, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		rows = append(rows, ModelRow{Path: filepath.Join(a.ModelsDir, e.Name()), SizeBytes: info.Size(), ModifiedAt: info.ModTime()})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ModifiedAt.After(rows[j].ModifiedAt) })

	limit := req.Limit
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return Reply{OK: true, Models: rows}
}

func (a *Adapter) cmdConversationDelete(ctx context.Context, req Request) Reply {
	deleter, ok := a.Store.(sessionDeleter)
	if !ok {
		return Reply{OK: false, Message: "the configured session store does not support deletion"}
	}
	if req.ConversationID == "" {
		return Reply{OK: false, Message: "conversation_id is required"}
	}
	paths, err := deleter.Delete(ctx, req.ConversationID)
	if err != nil {
		return Reply{OK: false, Message: err.Error()}
	}
	return Reply{OK: true, Message: "conversation deleted", DeletedPaths: paths}
}
