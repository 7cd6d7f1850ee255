package core

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_PassesValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Session.MaxHistory)
	assert.Equal(t, 10, cfg.RAOI.MaxIterations)
	assert.Equal(t, 384, cfg.Skills.EmbeddingDimension)
}

func TestLoadConfig_EnvOverridesDefault(t *testing.T) {
	t.Setenv("MODELCORE_AI_PROVIDER", "anthropic")
	t.Setenv("MODELCORE_AI_MODEL", "claude-test")
	t.Setenv("MODELCORE_RAOI_MAX_ITERATIONS", "7")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, "claude-test", cfg.AI.Model)
	assert.Equal(t, 7, cfg.RAOI.MaxIterations)
}

func TestLoadConfig_OptionsOverrideEnv(t *testing.T) {
	t.Setenv("MODELCORE_AI_PROVIDER", "anthropic")

	cfg, err := LoadConfig("", WithAIProvider("ollama", "llama3"))
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "llama3", cfg.AI.Model)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("name: test-agent\nai:\n  provider: gemini\n  model: gemini-test\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := LoadConfig(f.Name())
	require.NoError(t, err)
	assert.Equal(t, "test-agent", cfg.Name)
	assert.Equal(t, "gemini", cfg.AI.Provider)
}

func TestConfig_Validate_RejectsUnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AI.Provider = "not-a-provider"
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_RejectsNonPositiveHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.MaxHistory = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)
}
