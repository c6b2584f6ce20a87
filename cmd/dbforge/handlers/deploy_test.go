package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbforge/dbforge/internal/ansible"
	"github.com/dbforge/dbforge/internal/config"
	"github.com/dbforge/dbforge/internal/inventory"
	"github.com/dbforge/dbforge/internal/progress"
	"github.com/dbforge/dbforge/internal/state"
	"github.com/dbforge/dbforge/internal/terraform"
)

const terraformStub = `#!/bin/sh
case "$1" in
  init) echo "Initializing the backend..." ;;
  plan) echo "Plan: 2 to add, 0 to change, 0 to destroy." ;;
  apply)
    echo "Plan: 2 to add, 0 to change, 0 to destroy."
    echo "aws_instance.node[0]: Creation complete after 31s"
    echo "aws_instance.node[1]: Creation complete after 35s"
    ;;
  destroy)
    echo "aws_instance.node[0]: Destruction complete after 12s"
    ;;
  output)
    echo '{"node_ips":{"value":{"node-0":"10.0.1.10","node-1":"10.0.1.11"},"type":["object",{}]}}'
    ;;
esac
exit 0
`

const terraformFailStub = `#!/bin/sh
case "$1" in
  apply) echo "Error: quota exceeded" >&2; exit 1 ;;
  *) exit 0 ;;
esac
`

const ansibleStub = `#!/bin/sh
echo "TASK [install database packages]"
echo "ok: [node-0]"
echo "TASK [start services]"
echo "changed: [node-0]"
exit 0
`

// writeStub creates a fake tool binary.
func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// stubTools points the factory variables at fake binaries for one test.
func stubTools(t *testing.T, tfScript, ansibleScript string) {
	t.Helper()
	tfBin := writeStub(t, tfScript)
	ansibleBin := writeStub(t, ansibleScript)

	origTF, origAnsible, origMetrics := newTerraform, newAnsible, openMetrics
	t.Cleanup(func() { newTerraform, newAnsible, openMetrics = origTF, origAnsible, origMetrics })

	newTerraform = func(dir string) *terraform.Driver {
		d := terraform.New(dir)
		d.Bin = tfBin
		return d
	}
	newAnsible = func(dir string) *ansible.Driver {
		d := ansible.New(dir)
		d.Bin = ansibleBin
		return d
	}

	metricsPath := filepath.Join(t.TempDir(), "metrics.jsonl")
	openMetrics = func() *progress.Repository {
		repo, err := progress.OpenRepository(metricsPath)
		require.NoError(t, err)
		return repo
	}
}

func deployedDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "analytics")
	require.NoError(t, Init(initOpts(dir)))
	return dir
}

func TestDeploy_EndToEnd(t *testing.T) {
	dir := deployedDir(t)
	stubTools(t, terraformStub, ansibleStub)

	require.NoError(t, Deploy(context.Background(), dir, ProgressJSON))

	status, err := state.NewStore(dir).Status()
	require.NoError(t, err)
	assert.Equal(t, state.StatusDeployed, status)

	_, err = os.Stat(filepath.Join(dir, state.LockFile))
	assert.True(t, os.IsNotExist(err), "lock must be released")

	addrs, err := inventory.InventoryAddresses(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"node-0": "10.0.1.10", "node-1": "10.0.1.11"}, addrs)

	journal, err := os.ReadFile(filepath.Join(dir, progress.JournalFile))
	require.NoError(t, err)
	assert.Contains(t, string(journal), `"step":"terraform-apply"`)
	assert.Contains(t, string(journal), `"status":"completed"`)

	cfg, err := config.LoadDir(dir)
	require.NoError(t, err)
	samples := openMetrics().Samples(cfg.Provider, "deploy")
	require.Len(t, samples, 1)
	assert.Equal(t, 2, samples[0].NodeCount)
	assert.Positive(t, samples[0].TotalOutputLines)
	assert.GreaterOrEqual(t, samples[0].DurationSeconds, 0.0)
}

func TestDeploy_SubprocessFailure(t *testing.T) {
	dir := deployedDir(t)
	stubTools(t, terraformFailStub, ansibleStub)

	err := Deploy(context.Background(), dir, ProgressJSON)
	require.Error(t, err)

	status, serr := state.NewStore(dir).Status()
	require.NoError(t, serr)
	assert.Equal(t, state.StatusDeployFailed, status)

	_, err = os.Stat(filepath.Join(dir, state.LockFile))
	assert.True(t, os.IsNotExist(err), "lock must be released on failure too")
}

func TestDeploy_PreconditionRejected(t *testing.T) {
	dir := deployedDir(t)
	stubTools(t, terraformStub, ansibleStub)
	require.NoError(t, state.NewStore(dir).SetStatus(state.StatusDeployed))

	err := Deploy(context.Background(), dir, ProgressJSON)
	require.Error(t, err)

	var precondition *state.PreconditionError
	assert.ErrorAs(t, err, &precondition)
}

// stubConfirm replaces the destroy confirmation prompt for one test.
func stubConfirm(t *testing.T, answer bool) *int {
	t.Helper()
	orig := confirmDestroy
	t.Cleanup(func() { confirmDestroy = orig })

	calls := 0
	confirmDestroy = func(string) (bool, error) {
		calls++
		return answer, nil
	}
	return &calls
}

func TestDestroy_EndToEnd(t *testing.T) {
	dir := deployedDir(t)
	stubTools(t, terraformStub, ansibleStub)
	require.NoError(t, Deploy(context.Background(), dir, ProgressJSON))
	stubConfirm(t, true)

	require.NoError(t, Destroy(context.Background(), dir, ProgressJSON, false))

	status, err := state.NewStore(dir).Status()
	require.NoError(t, err)
	assert.Equal(t, state.StatusDestroyed, status)

	_, err = os.Stat(filepath.Join(dir, inventory.InventoryFile))
	assert.True(t, os.IsNotExist(err), "address artifacts removed")
	_, err = os.Stat(filepath.Join(dir, config.FileName))
	assert.NoError(t, err, "configuration survives destroy")
}

func TestDestroy_ConfirmationDeclined(t *testing.T) {
	dir := deployedDir(t)
	stubTools(t, terraformStub, ansibleStub)
	require.NoError(t, Deploy(context.Background(), dir, ProgressJSON))
	stubConfirm(t, false)

	require.NoError(t, Destroy(context.Background(), dir, ProgressJSON, false))

	status, err := state.NewStore(dir).Status()
	require.NoError(t, err)
	assert.Equal(t, state.StatusDeployed, status, "a declined prompt must not touch the status")

	_, err = os.Stat(filepath.Join(dir, inventory.InventoryFile))
	assert.NoError(t, err, "address artifacts survive a declined destroy")
}

func TestDestroy_ForceSkipsPrompt(t *testing.T) {
	dir := deployedDir(t)
	stubTools(t, terraformStub, ansibleStub)
	require.NoError(t, Deploy(context.Background(), dir, ProgressJSON))
	calls := stubConfirm(t, false)

	require.NoError(t, Destroy(context.Background(), dir, ProgressJSON, true))

	assert.Zero(t, *calls, "force must not prompt")
	status, err := state.NewStore(dir).Status()
	require.NoError(t, err)
	assert.Equal(t, state.StatusDestroyed, status)
}
