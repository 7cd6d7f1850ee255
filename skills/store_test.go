package skills

import (
	"context"
	"testing"

	"github.com/modelcore/agent/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_NoEmbedderSearchReturnsEmpty(t *testing.T) {
	store := NewStore(nil, 384, nil)
	rows, err := store.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_IndexAndSearch(t *testing.T) {
	embedder := ai.NewHashEmbedder(384)
	store := NewStore(embedder, 384, nil)

	list := []Skill{
		{Name: "steel-default", Instructions: "Default to structural steel unless told otherwise."},
		{Name: "mesh-sizing", Instructions: "Use finer mesh near fillets for stress concentration."},
	}
	require.NoError(t, store.Index(context.Background(), list))

	rows, err := store.Search(context.Background(), "fillet mesh refinement", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "mesh-sizing", rows[0].Name)
}

func TestStore_EnsureIndexedNoOpWhenNotEmpty(t *testing.T) {
	embedder := ai.NewHashEmbedder(384)
	store := NewStore(embedder, 384, nil)
	list := []Skill{{Name: "a", Instructions: "alpha"}}
	require.NoError(t, store.Index(context.Background(), list))

	require.NoError(t, store.EnsureIndexed(context.Background(), []Skill{{Name: "b", Instructions: "beta"}}))

	rows, err := store.Search(context.Background(), "alpha", 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Name)
}
