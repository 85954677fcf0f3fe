package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/drivedqn/experiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(func() { configFile = "" })

	cmd := rootCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestRender(t *testing.T) {
	out := filepath.Join(t.TempDir(), "track.png")
	require.NoError(t, execute(t, "render", "--out", out, "--frames", "30",
		"--action", "7"))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, execute(t, "render", "--out", out, "--action", "9"))
}

func TestLoadConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"MaxSteps": 7}`), 0o644))

	configFile = path
	t.Cleanup(func() { configFile = "" })
	c, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint(7), c.MaxSteps)

	configFile = ""
	c, err = loadConfig()
	require.NoError(t, err)
	def, err := experiment.DefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, def.MaxSteps, c.MaxSteps)

	assert.Error(t, execute(t, "--config",
		filepath.Join(t.TempDir(), "missing.json"), "render"))
}
