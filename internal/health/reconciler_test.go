package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbforge/dbforge/internal/backup"
	"github.com/dbforge/dbforge/internal/config"
	"github.com/dbforge/dbforge/internal/inventory"
)

// fakeRemote scripts remote command results per host address.
type fakeRemote struct {
	down             map[string]bool // "addr:port" connection refused
	inactive         map[string]bool // "addr/svc" unit inactive
	recoverOnRestart bool
	volumeCount      map[string]string // addr -> lsblk line count
	clusterStatus    string

	restarts []string
}

func (f *fakeRemote) Run(_ context.Context, addr string, port int, _, command string) (string, error) {
	if f.down[fmt.Sprintf("%s:%d", addr, port)] {
		return "", fmt.Errorf("dial tcp %s:%d: connection refused", addr, port)
	}
	switch {
	case command == probeCommand:
		return "", nil
	case strings.HasPrefix(command, "systemctl is-active "):
		svc := strings.TrimPrefix(command, "systemctl is-active ")
		if f.inactive[addr+"/"+svc] {
			return "inactive", nil
		}
		return "active", nil
	case strings.HasPrefix(command, "sudo systemctl restart "):
		svc := strings.TrimPrefix(command, "sudo systemctl restart ")
		f.restarts = append(f.restarts, addr+"/"+svc)
		if f.recoverOnRestart {
			delete(f.inactive, addr+"/"+svc)
		}
		return "", nil
	case command == volumeCountCommand:
		if n, ok := f.volumeCount[addr]; ok {
			return n + "\n", nil
		}
		return "2\n", nil // root plus one data volume
	case command == clusterStateCommand:
		if f.clusterStatus != "" {
			return f.clusterStatus + "\n", nil
		}
		return "ONLINE\n", nil
	}
	return "", fmt.Errorf("unexpected command: %s", command)
}

type fakeState struct {
	ips       map[string]string
	refreshed bool
}

func (f *fakeState) NodeIPs(context.Context) (map[string]string, error) { return f.ips, nil }
func (f *fakeState) Refresh(context.Context) error                      { f.refreshed = true; return nil }

type fakeInstances struct{ count int }

func (f *fakeInstances) CountInstances(context.Context, string) (int, error) { return f.count, nil }
func (f *fakeInstances) SetPower(context.Context, string, bool) error        { return nil }

func testConfig(nodes int) *config.Config {
	return &config.Config{
		Name:             "analytics",
		Provider:         "aws",
		AdminUser:        "dbadmin",
		RecoveryUser:     "dbrecovery",
		RecoveryPort:     2222,
		RequiredServices: []string{"dbforge-node"},
		ClusterSize:      nodes,
		DataVolumes:      1,
	}
}

func writeCluster(t *testing.T, nodes int) string {
	t.Helper()
	dir := t.TempDir()
	info := inventory.Info{Name: "analytics", Provider: "aws", DBVersion: "8.32.0"}
	for i := 0; i < nodes; i++ {
		info.Hosts = append(info.Hosts, inventory.Host{
			Name:        fmt.Sprintf("node-%d", i),
			Address:     fmt.Sprintf("10.0.1.%d", 10+i),
			DataVolumes: 1,
		})
	}
	access := inventory.AccessConfig{AdminUser: "dbadmin", RecoveryUser: "dbrecovery", RecoveryPort: 2222, IdentityFile: "./id_ed25519"}
	require.NoError(t, inventory.WriteAll(dir, info, access))
	return dir
}

func liveIPs(nodes int) map[string]string {
	ips := make(map[string]string, nodes)
	for i := 0; i < nodes; i++ {
		ips[fmt.Sprintf("node-%d", i)] = fmt.Sprintf("10.0.1.%d", 10+i)
	}
	return ips
}

func TestRun_HealthyCluster(t *testing.T) {
	dir := writeCluster(t, 2)
	r := &Reconciler{
		Dir:    dir,
		Config: testConfig(2),
		Remote: &fakeRemote{},
		State:  &fakeState{ips: liveIPs(2)},
	}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.IssuesCount)
	assert.Equal(t, len(report.Issues), report.IssuesCount)
	assert.Equal(t, 2, report.HostsReachable)
	assert.Equal(t, 2, report.ServicesOK)
	assert.Equal(t, ExitHealthy, report.ExitCode())
}

func TestRun_AppendsHistoryEveryInvocation(t *testing.T) {
	dir := writeCluster(t, 1)
	r := &Reconciler{Dir: dir, Config: testConfig(1), Remote: &fakeRemote{}}

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, HistoryFile))
	require.NoError(t, err)
	records := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, records, 2)
	assert.Contains(t, records[0], `"pass":true`)
}

func TestReachability_RecoveryPathIsEnough(t *testing.T) {
	dir := writeCluster(t, 1)
	remote := &fakeRemote{down: map[string]bool{"10.0.1.10:22": true}}
	r := &Reconciler{Dir: dir, Config: testConfig(1), Remote: remote}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.HostsReachable)
	// Port 22 checks fail but the host does not count as unreachable.
	for _, f := range report.Issues {
		assert.NotEqual(t, CategoryReachability, f.Category)
	}
}

func TestReachability_BothPathsDown(t *testing.T) {
	dir := writeCluster(t, 1)
	remote := &fakeRemote{down: map[string]bool{
		"10.0.1.10:22":   true,
		"10.0.1.10:2222": true,
	}}
	r := &Reconciler{Dir: dir, Config: testConfig(1), Remote: remote}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.HostsUnreachable)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, CategoryReachability, report.Issues[0].Category)
	assert.Equal(t, SeverityCritical, report.Issues[0].Severity)
	assert.Equal(t, report.IssuesCount, len(report.Issues))
	assert.Equal(t, ExitIssues, report.ExitCode())
}

func TestServices_InactiveWithoutRepair(t *testing.T) {
	dir := writeCluster(t, 1)
	remote := &fakeRemote{inactive: map[string]bool{"10.0.1.10/dbforge-node": true}}
	r := &Reconciler{Dir: dir, Config: testConfig(1), Remote: remote}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, CategoryService, report.Issues[0].Category)
	assert.True(t, report.Issues[0].Remediable)
	assert.Empty(t, remote.restarts, "no repair requested, no restart issued")
	assert.Equal(t, ExitIssues, report.ExitCode())
}

func TestServices_RestartRepairs(t *testing.T) {
	dir := writeCluster(t, 1)
	remote := &fakeRemote{
		inactive:         map[string]bool{"10.0.1.10/dbforge-node": true},
		recoverOnRestart: true,
	}
	r := &Reconciler{Dir: dir, Config: testConfig(1), Remote: remote, Repair: true}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.1.10/dbforge-node"}, remote.restarts)
	assert.Len(t, report.Repaired, 1)
	assert.False(t, report.RepairFailed)
}

func TestServices_RestartFailsStaysInactive(t *testing.T) {
	dir := writeCluster(t, 1)
	remote := &fakeRemote{inactive: map[string]bool{"10.0.1.10/dbforge-node": true}}
	r := &Reconciler{Dir: dir, Config: testConfig(1), Remote: remote, Repair: true}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.RepairFailed)
	assert.Equal(t, ExitRepairFailed, report.ExitCode())
}

func TestAddresses_DriftYieldsOneFinding(t *testing.T) {
	dir := writeCluster(t, 1)
	state := &fakeState{ips: map[string]string{"node-0": "10.0.9.99"}}
	r := &Reconciler{Dir: dir, Config: testConfig(1), Remote: &fakeRemote{}, State: state}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, CategoryIPConsistency, report.Issues[0].Category)
	assert.True(t, report.Issues[0].Remediable)
}

func TestAddresses_RepairRewritesAndBacksUp(t *testing.T) {
	dir := writeCluster(t, 1)
	state := &fakeState{ips: map[string]string{"node-0": "10.0.9.99"}}
	r := &Reconciler{
		Dir: dir, Config: testConfig(1), Remote: &fakeRemote{},
		State: state, Repair: true, RefreshState: true,
	}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Repaired, 1)
	assert.True(t, state.refreshed)

	// All three artifacts now carry the live address.
	for _, load := range []func(string) (map[string]string, error){
		inventory.InventoryAddresses, inventory.SSHConfigAddresses, inventory.InfoAddresses,
	} {
		addrs, err := load(dir)
		require.NoError(t, err)
		assert.Equal(t, "10.0.9.99", addrs["node-0"])
	}

	// One snapshot containing the three pre-rewrite artifacts.
	snaps, err := filepath.Glob(filepath.Join(dir, backup.Root, "health", "*"))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	for _, name := range []string{inventory.InventoryFile, inventory.SSHConfigFile, inventory.InfoFile} {
		_, err := os.Stat(filepath.Join(snaps[0], name))
		assert.NoError(t, err, name)
	}
	data, err := os.ReadFile(filepath.Join(snaps[0], inventory.InfoFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "10.0.1.10", "snapshot keeps the pre-rewrite address")

	// A second run against the repaired artifacts is clean.
	clean, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, clean.IssuesCount)
}

func TestVolumes_UnderCountIsWarningOnly(t *testing.T) {
	dir := writeCluster(t, 1)
	remote := &fakeRemote{volumeCount: map[string]string{"10.0.1.10": "1"}} // root only
	r := &Reconciler{Dir: dir, Config: testConfig(1), Remote: remote}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, CategoryVolume, report.Issues[0].Category)
	assert.Equal(t, SeverityWarning, report.Issues[0].Severity)
}

func TestClusterState_QueriedOnSingleNodeOnly(t *testing.T) {
	dir := writeCluster(t, 1)
	remote := &fakeRemote{clusterStatus: "DEGRADED"}
	r := &Reconciler{Dir: dir, Config: testConfig(1), Remote: remote}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.IssuesCount, "single-node deployments skip the membership check")
}

func TestClusterState_DegradedMultiNode(t *testing.T) {
	dir := writeCluster(t, 3)
	remote := &fakeRemote{clusterStatus: "DEGRADED"}
	r := &Reconciler{Dir: dir, Config: testConfig(3), Remote: remote}

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, CategoryClusterState, report.Issues[0].Category)
	assert.Contains(t, report.Issues[0].Detail, "DEGRADED")
}

func TestInstanceCount_MismatchAndSkip(t *testing.T) {
	dir := writeCluster(t, 2)

	r := &Reconciler{
		Dir: dir, Config: testConfig(2), Remote: &fakeRemote{},
		Instances: &fakeInstances{count: 1},
	}
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, CategoryInstanceCount, report.Issues[0].Category)
	assert.Contains(t, report.Issues[0].Detail, "1 instances live")

	// No integration configured: check skipped, not failed.
	r.Instances = nil
	report, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.IssuesCount)
}
