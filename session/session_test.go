package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendEntry_TruncatesToHistoryLimit(t *testing.T) {
	sc := newEmpty("s1")
	for i := 0; i < historyLimit+10; i++ {
		sc.AppendEntry(Entry{UserInput: "turn", Timestamp: time.Now()})
	}
	assert.Len(t, sc.History, historyLimit)
}

func TestAppendEntry_TracksLatestArtifactPath(t *testing.T) {
	sc := newEmpty("s1")
	sc.AppendEntry(Entry{ArtifactPath: "/models/a.step"})
	sc.AppendEntry(Entry{})
	sc.AppendEntry(Entry{ArtifactPath: "/models/b.step"})
	assert.Equal(t, "/models/b.step", sc.LatestArtifactPath)
}

func TestRebuildSummary_AggregatesKindsAndMajorityUnit(t *testing.T) {
	sc := newEmpty("s1")
	sc.AppendEntry(Entry{UserInput: "make a bracket", ArtifactPath: "/m/a.step", Success: true, PlanSnapshot: map[string]interface{}{"unit": "mm"}})
	sc.AppendEntry(Entry{UserInput: "add steel", ArtifactPath: "/m/a.step", Success: true, PlanSnapshot: map[string]interface{}{"unit": "mm"}})
	sc.AppendEntry(Entry{UserInput: "solve it", ArtifactPath: "/m/a.mph", Success: false, PlanSnapshot: map[string]interface{}{"unit": "in"}})

	sc.RebuildSummary()

	assert.Equal(t, 3, sc.Summary.TotalCount)
	assert.ElementsMatch(t, []string{"step", "mph"}, sc.Summary.RecentArtifactKinds)
	assert.Equal(t, "mm", sc.Summary.Preferences["unit"])
	assert.Contains(t, sc.Summary.Text, "3 turns recorded")
	assert.Contains(t, sc.Summary.Text, "solve it")
}

func TestSetSummaryText_OverridesDirectly(t *testing.T) {
	sc := newEmpty("s1")
	sc.SetSummaryText("hand-authored memory")
	assert.Equal(t, "hand-authored memory", sc.Summary.Text)
	assert.False(t, sc.Summary.LastUpdated.IsZero())
}

func TestFileStore_SaveAndLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	require.NoError(t, err)

	sc := newEmpty("session-1")
	sc.AppendEntry(Entry{UserInput: "build a plate", ArtifactPath: "/m/plate.step", Success: true, Timestamp: time.Now()})
	sc.RebuildSummary()

	require.NoError(t, store.Save(context.Background(), "session-1", sc))

	loaded, err := store.Load(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, sc.LatestArtifactPath, loaded.LatestArtifactPath)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "build a plate", loaded.History[0].UserInput)
	assert.Equal(t, sc.Summary.Text, loaded.Summary.Text)

	assert.FileExists(t, filepath.Join(root, "session-1", "history.json"))
	assert.FileExists(t, filepath.Join(root, "session-1", "summary.json"))
	assert.FileExists(t, filepath.Join(root, "session-1", "latest_model.txt"))
	assert.FileExists(t, filepath.Join(root, "session-1", "operations.md"))
}

func TestFileStore_LoadUnknownSessionReturnsEmpty(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	sc, err := store.Load(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, "never-seen", sc.SessionID)
	assert.Empty(t, sc.History)
}

func TestMemoryQueue_RebuildsSummaryAsynchronously(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := NewMemoryQueue(ctx, store, 4, nil)

	queue.Enqueue("s2", Entry{UserInput: "first turn", Success: true, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		sc, err := store.Load(context.Background(), "s2")
		return err == nil && len(sc.History) == 1
	}, time.Second, 10*time.Millisecond)
}
