package skills

import (
	"context"
	"testing"

	"github.com/modelcore/agent/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSkills() []Skill {
	return []Skill{
		{Name: "steel-default", Instructions: "Default to structural steel unless told otherwise.", Triggers: []string{"material"}, Tags: []string{"material"}},
		{Name: "mesh-sizing", Instructions: "Use finer mesh near fillets.", Triggers: []string{"mesh", "mesh size"}, Tags: []string{"geometry"}},
		{Name: "thermal-coupling", Instructions: "Couple thermal and structural studies for expansion analysis.", Triggers: []string{"thermal"}, Tags: []string{"physics"}},
	}
}

func TestInjector_NoStoreFallsBackToTriggerMatch(t *testing.T) {
	in := NewInjector(nil, sampleSkills(), 2)
	out := in.Inject(context.Background(), "what mesh size should I use", "system prompt")

	assert.Contains(t, out, "system prompt")
	assert.Contains(t, out, blockMarker)
	assert.Contains(t, out, "finer mesh")
	assert.Equal(t, []string{"mesh-sizing"}, in.LastUsedSkills())
}

func TestInjector_TagMatchWhenNoTriggerMatches(t *testing.T) {
	in := NewInjector(nil, sampleSkills(), 3)
	in.Inject(context.Background(), "tell me about physics coupling setups", "")
	assert.Equal(t, []string{"thermal-coupling"}, in.LastUsedSkills())
}

func TestInjector_NoMatchTakesFirstK(t *testing.T) {
	in := NewInjector(nil, sampleSkills(), 2)
	in.Inject(context.Background(), "totally unrelated query xyz", "")
	assert.Equal(t, []string{"steel-default", "mesh-sizing"}, in.LastUsedSkills())
}

func TestInjector_EmptyQueryFallsBackToFirstK(t *testing.T) {
	in := NewInjector(nil, sampleSkills(), 2)
	out := in.Inject(context.Background(), "", "system prompt")
	assert.Equal(t, "system prompt\n\n"+blockMarker+"\n\nDefault to structural steel unless told otherwise.\n\nUse finer mesh near fillets.", out)
}

func TestInjector_InjectIntoPromptPrepends(t *testing.T) {
	in := NewInjector(nil, sampleSkills(), 1)
	out := in.InjectIntoPrompt(context.Background(), "thermal expansion question", "What should I model?")
	require.Contains(t, out, blockMarker)
	assert.True(t, len(out) > len("What should I model?"))
	assert.Contains(t, out, "What should I model?")
}

func TestInjector_VectorStorePreferredOverFallback(t *testing.T) {
	embedder := ai.NewHashEmbedder(384)
	store := NewStore(embedder, 384, nil)
	skillsList := sampleSkills()
	require.NoError(t, store.Index(context.Background(), skillsList))

	in := NewInjector(store, skillsList, 2)
	names, texts := in.retrieve(context.Background(), "mesh fillet sizing")
	assert.NotEmpty(t, names)
	assert.NotEmpty(t, texts)
}
