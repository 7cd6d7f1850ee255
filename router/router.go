// Package router implements the two-way intent classifier that decides
// whether a dialog turn is a plain question (qa) or a modeling task
// (technical), per spec.md §4.6.
package router

import (
	"context"
	"strings"
	"sync"

	"github.com/modelcore/agent/core"
)

// Caller is the subset of ai.Gateway the Router depends on. Accepting an
// interface here (rather than *ai.Gateway directly) keeps the gateway
// classification path testable without a live provider.
type Caller interface {
	Call(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error)
}

// Intent is the Router's classification of a user turn.
type Intent string

const (
	QA        Intent = "qa"
	Technical Intent = "technical"
)

const classifyInstruction = "output exactly one of qa|technical; no other text"

// Stats tracks classification outcomes for observability, mirrored after
// the teacher's own routing stats counters.
type Stats struct {
	TotalRequests int64
	GatewayUsed   int64
	FallbackUsed  int64
}

// Router classifies raw user text as qa or technical. The preferred path
// asks the LLM gateway; a keyword-rule fallback kicks in when the gateway
// is unavailable or errors, so classification never blocks a turn on a
// downed model endpoint.
type Router struct {
	gateway Caller
	logger  core.Logger

	mu    sync.Mutex
	stats Stats
}

// New constructs a Router. gateway may be nil, in which case every call
// uses the keyword fallback.
func New(gateway Caller, logger core.Logger) *Router {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Router{gateway: gateway, logger: logger}
}

// Classify returns the Router's Intent for text. Empty input is always qa.
func (r *Router) Classify(ctx context.Context, text string) Intent {
	r.mu.Lock()
	r.stats.TotalRequests++
	r.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return QA
	}

	if r.gateway != nil {
		if intent, ok := r.classifyViaGateway(ctx, text); ok {
			r.mu.Lock()
			r.stats.GatewayUsed++
			r.mu.Unlock()
			return intent
		}
	}

	r.mu.Lock()
	r.stats.FallbackUsed++
	r.mu.Unlock()
	return classifyByKeyword(text)
}

func (r *Router) classifyViaGateway(ctx context.Context, text string) (Intent, bool) {
	prompt := classifyInstruction + "\n\nMessage:\n" + text
	resp, err := r.gateway.Call(ctx, prompt, &core.AIOptions{Temperature: 0})
	if err != nil {
		r.logger.WarnWithContext(ctx, "router: gateway classification failed, using keyword fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return "", false
	}

	lower := strings.ToLower(resp.Content)
	switch {
	case strings.Contains(lower, string(Technical)):
		return Technical, true
	case strings.Contains(lower, string(QA)):
		return QA, true
	default:
		// Ambiguous reply: bias toward technical per spec.
		return Technical, true
	}
}

// greetingTerms are short conversational openers that bias a short input
// toward qa even though they might otherwise look ambiguous.
var greetingTerms = []string{"hi", "hello", "hey", "thanks", "thank you", "good morning", "good afternoon"}

// operationalVerbs mark a turn as describing model-building work,
// regardless of where they appear in the input.
var operationalVerbs = []string{
	"build", "create", "model", "design", "add", "apply", "mesh", "solve",
	"simulate", "analyze", "generate", "configure", "assign", "couple",
}

// classifyByKeyword is the fallback rule used when the gateway is
// unavailable or raises: greeting terms in a short input win first,
// then any operational verb anywhere in the input, then an input-length
// threshold, defaulting to technical.
func classifyByKeyword(text string) Intent {
	lower := strings.ToLower(text)

	if len(text) < 80 {
		for _, term := range greetingTerms {
			if strings.Contains(lower, term) {
				return QA
			}
		}
	}

	for _, verb := range operationalVerbs {
		if strings.Contains(lower, verb) {
			return Technical
		}
	}

	if len(text) < 30 {
		return QA
	}
	return Technical
}

// Stats returns a snapshot of classification counters.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
