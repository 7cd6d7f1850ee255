package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcore/agent/core"
)

// RebuildSummary recomputes Summary from the last summaryWindow entries of
// History: recent artifact-kind tags (derived from artifact path
// extensions), the majority-vote preferred unit (looked up in each
// entry's plan snapshot under the "unit" key, when present), and a short
// textual summary of counts and the last 5 activities.
func (c *Context) RebuildSummary() {
	window := c.History
	if len(window) > summaryWindow {
		window = window[len(window)-summaryWindow:]
	}

	kinds := recentArtifactKinds(window)
	unit := majorityUnit(window)

	if unit != "" {
		c.SetPreference("unit", unit)
	}

	c.Summary.TotalCount = len(c.History)
	c.Summary.RecentArtifactKinds = kinds
	c.Summary.Text = renderSummaryText(c.Summary.TotalCount, kinds, window)
	c.Summary.LastUpdated = timeNow()
}

func recentArtifactKinds(window []Entry) []string {
	seen := make(map[string]bool)
	var kinds []string
	for _, e := range window {
		if e.ArtifactPath == "" {
			continue
		}
		kind := artifactKind(e.ArtifactPath)
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func artifactKind(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return "unknown"
	}
	return ext
}

func majorityUnit(window []Entry) string {
	counts := make(map[string]int)
	for _, e := range window {
		if e.PlanSnapshot == nil {
			continue
		}
		if u, ok := e.PlanSnapshot["unit"].(string); ok && u != "" {
			counts[u]++
		}
	}

	var best string
	var bestCount int
	for unit, count := range counts {
		if count > bestCount {
			best, bestCount = unit, count
		}
	}
	return best
}

func renderSummaryText(total int, kinds []string, recent []Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d turns recorded", total)
	if len(kinds) > 0 {
		fmt.Fprintf(&b, "; recent artifacts: %s", strings.Join(kinds, ", "))
	}

	n := len(recent)
	if n > 5 {
		recent = recent[n-5:]
	}
	if len(recent) > 0 {
		b.WriteString("; last activities: ")
		lines := make([]string, 0, len(recent))
		for _, e := range recent {
			status := "ok"
			if !e.Success {
				status = "failed"
			}
			lines = append(lines, fmt.Sprintf("%q (%s)", truncateForSummary(e.UserInput), status))
		}
		b.WriteString(strings.Join(lines, "; "))
	}
	return b.String()
}

func truncateForSummary(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// MemoryQueue decouples the RAOI-loop turn from the cost of a summary
// rebuild: a turn's completed entry is posted to a buffered channel and
// a single background worker rebuilds and persists the summary, so the
// turn itself never blocks on the rebuild.
type MemoryQueue struct {
	store   Store
	jobs    chan memoryJob
	logger  core.Logger
}

type memoryJob struct {
	sessionID string
	entry     Entry
}

// NewMemoryQueue starts a background worker bound to ctx's lifetime,
// consuming appended entries and rebuilding+persisting each session's
// summary as they arrive. buffer bounds how many pending jobs may queue
// before Enqueue blocks.
func NewMemoryQueue(ctx context.Context, store Store, buffer int, logger core.Logger) *MemoryQueue {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	q := &MemoryQueue{store: store, jobs: make(chan memoryJob, buffer), logger: logger}
	go q.run(ctx)
	return q
}

// Enqueue posts a completed turn for asynchronous summary rebuild. It
// blocks only if the queue's buffer is full.
func (q *MemoryQueue) Enqueue(sessionID string, entry Entry) {
	q.jobs <- memoryJob{sessionID: sessionID, entry: entry}
}

func (q *MemoryQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *MemoryQueue) process(ctx context.Context, job memoryJob) {
	sc, err := q.store.Load(ctx, job.sessionID)
	if err != nil {
		q.logger.Error("memory queue: failed to load session", map[string]interface{}{
			"session_id": job.sessionID,
			"error":      err.Error(),
		})
		return
	}

	sc.AppendEntry(job.entry)
	sc.RebuildSummary()

	if err := q.store.Save(ctx, job.sessionID, sc); err != nil {
		q.logger.Error("memory queue: failed to save session", map[string]interface{}{
			"session_id": job.sessionID,
			"error":      err.Error(),
		})
	}
}
