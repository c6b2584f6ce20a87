package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "dbforge", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"init", "deploy", "start", "stop", "health", "destroy", "status", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRoot_SilencesUsageOnErrors(t *testing.T) {
	cmd := Root()
	assert.True(t, cmd.SilenceUsage)
}

func TestRoot_NoColorFlag(t *testing.T) {
	cmd := Root()

	flag := cmd.PersistentFlags().Lookup("no-color")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestStatus_JSONFlag(t *testing.T) {
	cmd := Status()
	assert.NotNil(t, cmd.Flags().Lookup("json"))
}
