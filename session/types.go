// Package session implements the Session Context and Memory Updater: a
// per-conversation history and summary, tail-truncated and persisted
// between turns, plus the most-recent-artifact pointer.
package session

import "time"

// Entry is one completed conversation turn.
type Entry struct {
	Timestamp    time.Time              `json:"timestamp"`
	UserInput    string                 `json:"user_input"`
	PlanSnapshot map[string]interface{} `json:"plan_snapshot,omitempty"`
	ArtifactPath string                 `json:"artifact_path,omitempty"`
	Success      bool                   `json:"success"`
	Error        string                 `json:"error,omitempty"`
}

// Summary is the rebuilt rolling summary of a session's recent activity.
type Summary struct {
	Text             string            `json:"text"`
	LastUpdated      time.Time         `json:"last_updated"`
	TotalCount       int               `json:"total_count"`
	RecentArtifactKinds []string       `json:"recent_artifact_kinds,omitempty"`
	Preferences      map[string]string `json:"preferences,omitempty"`
}

// Context is the full per-conversation state held by a Session Context:
// history, rolling summary, and the most-recent-artifact pointer.
type Context struct {
	SessionID          string   `json:"session_id"`
	History            []Entry  `json:"history"`
	Summary            Summary  `json:"summary"`
	LatestArtifactPath string   `json:"latest_artifact_path,omitempty"`
}

// historyLimit mirrors core.DefaultSessionHistoryLimit without importing
// core for a single constant used only by AppendEntry.
const historyLimit = 100

// summaryWindow is how many of the most recent entries feed a summary
// rebuild.
const summaryWindow = 20

// AppendEntry appends e to History, truncating to the tail historyLimit
// entries, and updates LatestArtifactPath when e carries one.
func (c *Context) AppendEntry(e Entry) {
	c.History = append(c.History, e)
	if len(c.History) > historyLimit {
		c.History = c.History[len(c.History)-historyLimit:]
	}
	if e.ArtifactPath != "" {
		c.LatestArtifactPath = e.ArtifactPath
	}
}

// SetPreference lets a user or agent record an explicit session
// preference (e.g. preferred unit system), independent of the
// majority-vote aggregation a summary rebuild performs.
func (c *Context) SetPreference(name, value string) {
	if c.Summary.Preferences == nil {
		c.Summary.Preferences = make(map[string]string)
	}
	c.Summary.Preferences[name] = value
}

// SetSummaryText lets a user replace the summary text directly, authoring
// their own session memory, per spec.
func (c *Context) SetSummaryText(text string) {
	c.Summary.Text = text
	c.Summary.LastUpdated = timeNow()
}

// timeNow is a package-level indirection so tests can stamp deterministic
// times without pulling in a Clock abstraction for one field.
var timeNow = func() time.Time { return time.Now() }
