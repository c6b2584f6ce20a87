package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeploy(t *testing.T) {
	cmd := Deploy()

	require.NotNil(t, cmd)
	assert.Equal(t, "deploy", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	assert.Contains(t, cmd.Long, "provisions the cluster infrastructure")
}

func TestDeploy_CommonFlags(t *testing.T) {
	cmd := Deploy()

	dir := cmd.Flags().Lookup("dir")
	require.NotNil(t, dir)
	assert.Equal(t, "d", dir.Shorthand)
	assert.Equal(t, ".", dir.DefValue)

	mode := cmd.Flags().Lookup("progress")
	require.NotNil(t, mode)
	assert.Equal(t, "text", mode.DefValue)
}

func TestDestroy(t *testing.T) {
	cmd := Destroy()

	require.NotNil(t, cmd)
	assert.Equal(t, "destroy", cmd.Use)
	assert.Contains(t, cmd.Long, "WARNING")
	assert.NotNil(t, cmd.Flags().Lookup("progress"))

	force := cmd.Flags().Lookup("force")
	require.NotNil(t, force)
	assert.Equal(t, "false", force.DefValue)
}

func TestStartStop(t *testing.T) {
	start := Start()
	assert.Equal(t, "start", start.Use)
	assert.NotNil(t, start.RunE)

	stop := Stop()
	assert.Equal(t, "stop", stop.Use)
	assert.NotNil(t, stop.RunE)
}
