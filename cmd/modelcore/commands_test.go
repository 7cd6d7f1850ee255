package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcore/agent/core"
)

func testConfig(t *testing.T) *core.Config {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.ContextRoot = filepath.Join(t.TempDir(), "sessions")
	cfg.SkillsRoot = filepath.Join(t.TempDir(), "skills")
	cfg.VectorDBDir = t.TempDir()
	return cfg
}

func TestNewApp_WiresEveryComponentWithNoGatewayConfigured(t *testing.T) {
	cfg := testConfig(t)
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)

	assert.Nil(t, a.gateway, "no API key in the test config, so no gateway should be constructed")
	assert.NotNil(t, a.orch)
	assert.NotNil(t, a.backend)
	assert.NotNil(t, a.store)
	assert.NotNil(t, a.adapter)
	assert.NotNil(t, a.bus)
	require.NoError(t, a.shutdown(context.Background()))
}

func TestDoctorCommand_ReportsOKWithoutAGateway(t *testing.T) {
	load := func() (*core.Config, error) { return testConfig(t), nil }

	cmd := newDoctorCommand(load)
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "\"backend\": \"ok\"")
}

func TestRunCommand_RequiresInputFlag(t *testing.T) {
	load := func() (*core.Config, error) { return testConfig(t), nil }
	cmd := newRunCommand(load)
	cmd.SetArgs([]string{})
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	require.Error(t, cmd.Execute())
}

func TestContextCommand_SetSummaryThenShowRoundTrips(t *testing.T) {
	cfg := testConfig(t)
	load := func() (*core.Config, error) { return cfg, nil }

	set := newContextCommand(load)
	set.SetArgs([]string{"set-summary", "--conversation-id", "sess-cli", "--text", "prefers SI units"})
	set.SetContext(context.Background())
	var setOut bytes.Buffer
	set.SetOut(&setOut)
	require.NoError(t, set.Execute())

	show := newContextCommand(load)
	show.SetArgs([]string{"show", "--conversation-id", "sess-cli"})
	show.SetContext(context.Background())
	var showOut bytes.Buffer
	show.SetOut(&showOut)
	require.NoError(t, show.Execute())

	assert.Contains(t, showOut.String(), "prefers SI units")
}
