package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbforge/dbforge/internal/config"
	"github.com/dbforge/dbforge/internal/provider"
	"github.com/dbforge/dbforge/internal/state"
)

const powerApplyStub = `#!/bin/sh
echo "$@" >> power-args.log
exit 0
`

type fakePowerAPI struct {
	powered []bool
	cluster string
}

func (f *fakePowerAPI) CountInstances(context.Context, string) (int, error) { return 0, nil }
func (f *fakePowerAPI) SetPower(_ context.Context, cluster string, on bool) error {
	f.cluster = cluster
	f.powered = append(f.powered, on)
	return nil
}

func stubWait(t *testing.T) {
	t.Helper()
	orig := waitForCluster
	t.Cleanup(func() { waitForCluster = orig })
	waitForCluster = func(context.Context, string, *config.Config) error { return nil }
}

func stubPowerAPI(t *testing.T) *fakePowerAPI {
	t.Helper()
	fake := &fakePowerAPI{}
	orig := newInstanceAPI
	t.Cleanup(func() { newInstanceAPI = orig })
	newInstanceAPI = func(context.Context, string, provider.Credentials) (provider.InstanceAPI, error) {
		return fake, nil
	}
	return fake
}

func TestStart_NativePowerControl(t *testing.T) {
	dir := deployedDir(t) // aws
	stubTools(t, terraformStub, ansibleStub)
	stubWait(t)
	fake := stubPowerAPI(t)
	require.NoError(t, state.NewStore(dir).SetStatus(state.StatusStopped))

	require.NoError(t, Start(context.Background(), dir, ProgressJSON))

	assert.Equal(t, []bool{true}, fake.powered)
	assert.Equal(t, "analytics", fake.cluster)

	status, err := state.NewStore(dir).Status()
	require.NoError(t, err)
	assert.Equal(t, state.StatusDeployed, status)
}

func TestStop_NativePowerControl(t *testing.T) {
	dir := deployedDir(t)
	stubTools(t, terraformStub, ansibleStub)
	fake := stubPowerAPI(t)
	require.NoError(t, state.NewStore(dir).SetStatus(state.StatusDeployed))

	require.NoError(t, Stop(context.Background(), dir, ProgressJSON))

	assert.Equal(t, []bool{false}, fake.powered)

	status, err := state.NewStore(dir).Status()
	require.NoError(t, err)
	assert.Equal(t, state.StatusStopped, status)
}

func TestStart_TargetedApplyWithoutNativePower(t *testing.T) {
	opts := initOpts(filepath.Join(t.TempDir(), "analytics"))
	opts.Provider = "gcp"
	require.NoError(t, Init(opts))
	dir := opts.Dir

	stubTools(t, powerApplyStub, ansibleStub)
	stubWait(t)
	require.NoError(t, state.NewStore(dir).SetStatus(state.StatusStopped))

	require.NoError(t, Start(context.Background(), dir, ProgressJSON))

	args, err := os.ReadFile(filepath.Join(dir, "terraform", "power-args.log"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "-var=power_on=true")
	assert.Contains(t, string(args), "-target=module.nodes")
}

func TestStart_WrongStatusRejected(t *testing.T) {
	dir := deployedDir(t) // initialized
	stubTools(t, terraformStub, ansibleStub)

	err := Start(context.Background(), dir, ProgressJSON)
	require.Error(t, err)

	var precondition *state.PreconditionError
	assert.ErrorAs(t, err, &precondition)
}
