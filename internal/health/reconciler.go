package health

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dbforge/dbforge/internal/backup"
	"github.com/dbforge/dbforge/internal/config"
	"github.com/dbforge/dbforge/internal/inventory"
	"github.com/dbforge/dbforge/internal/provider"
)

// Remote commands issued during checks.
const (
	probeCommand        = "true"
	serviceQueryCommand = "systemctl is-active %s"
	serviceResetCommand = "sudo systemctl restart %s"
	volumeCountCommand  = "lsblk -dn -o NAME | wc -l"
	clusterStateCommand = "dbforge-node-ctl cluster-status"
)

// StateReader exposes the provisioning tool's recorded node addresses.
type StateReader interface {
	NodeIPs(ctx context.Context) (map[string]string, error)
	Refresh(ctx context.Context) error
}

// Reconciler runs the health checks against one deployment. Nil State or
// Instances skip the checks that need them.
type Reconciler struct {
	Dir       string
	Config    *config.Config
	Remote    Runner
	State     StateReader
	Instances provider.InstanceAPI

	// Repair enables service restarts and artifact rewrites.
	Repair bool
	// RefreshState additionally triggers a provisioning-state refresh
	// after address repairs.
	RefreshState bool
}

// Run executes all checks and appends the summary to the history log.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	hosts, err := inventory.Hosts(r.Dir)
	if err != nil {
		return nil, err
	}

	report := &Report{Timestamp: time.Now().UTC(), Issues: []Finding{}}

	reachable := r.checkReachability(ctx, hosts, report)
	r.checkServices(ctx, reachable, report)
	r.checkAddresses(ctx, hosts, report)
	r.checkVolumes(ctx, reachable, report)
	r.checkClusterState(ctx, hosts, reachable, report)
	r.checkInstanceCount(ctx, report)

	// Computed exactly once, before any text/JSON rendering happens.
	report.IssuesCount = len(report.Issues)

	if err := appendHistory(r.Dir, report); err != nil {
		return nil, err
	}
	return report, nil
}

// checkReachability probes every host over both access paths. A host
// counts as unreachable only when the admin and the recovery path both
// fail.
func (r *Reconciler) checkReachability(ctx context.Context, hosts []inventory.Host, report *Report) []inventory.Host {
	var reachable []inventory.Host
	for _, h := range hosts {
		_, adminErr := r.Remote.Run(ctx, h.Address, 22, r.Config.AdminUser, probeCommand)
		if adminErr == nil {
			report.HostsReachable++
			reachable = append(reachable, h)
			continue
		}
		_, recoveryErr := r.Remote.Run(ctx, h.Address, r.Config.RecoveryPort, r.Config.RecoveryUser, probeCommand)
		if recoveryErr == nil {
			report.HostsReachable++
			reachable = append(reachable, h)
			continue
		}
		report.HostsUnreachable++
		report.Issues = append(report.Issues, Finding{
			Category: CategoryReachability,
			Severity: SeverityCritical,
			Host:     h.Name,
			Detail:   fmt.Sprintf("unreachable via %s@22 (%v) and %s@%d (%v)", r.Config.AdminUser, adminErr, r.Config.RecoveryUser, r.Config.RecoveryPort, recoveryErr),
		})
	}
	return reachable
}

// checkServices verifies the required systemd units on every reachable
// host. With repair enabled an inactive unit is restarted once and
// re-checked; a unit that stays inactive marks the repair as failed.
func (r *Reconciler) checkServices(ctx context.Context, reachable []inventory.Host, report *Report) {
	for _, h := range reachable {
		for _, svc := range r.Config.RequiredServices {
			if r.serviceActive(ctx, h, svc) {
				report.ServicesOK++
				continue
			}
			report.ServicesFailed++

			if !r.Repair {
				report.Issues = append(report.Issues, Finding{
					Category:   CategoryService,
					Severity:   SeverityCritical,
					Host:       h.Name,
					Detail:     fmt.Sprintf("%s is not active", svc),
					Remediable: true,
				})
				continue
			}

			_, _ = r.Remote.Run(ctx, h.Address, 22, r.Config.AdminUser, fmt.Sprintf(serviceResetCommand, svc))
			if r.serviceActive(ctx, h, svc) {
				report.Repaired = append(report.Repaired, fmt.Sprintf("%s/%s restarted", h.Name, svc))
				report.Issues = append(report.Issues, Finding{
					Category:   CategoryService,
					Severity:   SeverityWarning,
					Host:       h.Name,
					Detail:     fmt.Sprintf("%s was inactive, restarted", svc),
					Remediable: true,
				})
				continue
			}
			report.RepairFailed = true
			report.Issues = append(report.Issues, Finding{
				Category:   CategoryService,
				Severity:   SeverityCritical,
				Host:       h.Name,
				Detail:     fmt.Sprintf("%s still inactive after restart", svc),
				Remediable: true,
			})
		}
	}
}

func (r *Reconciler) serviceActive(ctx context.Context, h inventory.Host, svc string) bool {
	out, err := r.Remote.Run(ctx, h.Address, 22, r.Config.AdminUser, fmt.Sprintf(serviceQueryCommand, svc))
	return err == nil && strings.TrimSpace(out) == "active"
}

// checkAddresses compares the provisioning tool's recorded address per
// host against the three local artifacts. With repair enabled the
// artifacts are backed up once and rewritten atomically.
func (r *Reconciler) checkAddresses(ctx context.Context, hosts []inventory.Host, report *Report) {
	if r.State == nil {
		return
	}
	live, err := r.State.NodeIPs(ctx)
	if err != nil {
		report.Issues = append(report.Issues, Finding{
			Category: CategoryIPConsistency,
			Severity: SeverityWarning,
			Detail:   fmt.Sprintf("cannot read provisioning state: %v", err),
		})
		return
	}

	invAddrs, err1 := inventory.InventoryAddresses(r.Dir)
	sshAddrs, err2 := inventory.SSHConfigAddresses(r.Dir)
	infoAddrs, err3 := inventory.InfoAddresses(r.Dir)
	for _, err := range []error{err1, err2, err3} {
		if err != nil {
			report.Issues = append(report.Issues, Finding{
				Category: CategoryIPConsistency,
				Severity: SeverityCritical,
				Detail:   fmt.Sprintf("cannot read artifact: %v", err),
			})
			return
		}
	}

	backedUp := false
	repairedAny := false
	for _, h := range hosts {
		addr, ok := live[h.Name]
		if !ok || addr == "" {
			continue
		}
		if invAddrs[h.Name] == addr && sshAddrs[h.Name] == addr && infoAddrs[h.Name] == addr {
			continue
		}

		if !r.Repair {
			report.Issues = append(report.Issues, Finding{
				Category:   CategoryIPConsistency,
				Severity:   SeverityCritical,
				Host:       h.Name,
				Detail:     fmt.Sprintf("live address %s differs from recorded %s", addr, invAddrs[h.Name]),
				Remediable: true,
			})
			continue
		}

		if !backedUp {
			if _, err := backup.Snapshot(r.Dir, "health",
				inventory.InventoryFile, inventory.SSHConfigFile, inventory.InfoFile); err != nil {
				report.RepairFailed = true
				report.Issues = append(report.Issues, Finding{
					Category:   CategoryIPConsistency,
					Severity:   SeverityCritical,
					Host:       h.Name,
					Detail:     fmt.Sprintf("backup failed, not rewriting artifacts: %v", err),
					Remediable: true,
				})
				return
			}
			backedUp = true
		}
		if err := inventory.SetAddress(r.Dir, h.Name, addr); err != nil {
			report.RepairFailed = true
			report.Issues = append(report.Issues, Finding{
				Category:   CategoryIPConsistency,
				Severity:   SeverityCritical,
				Host:       h.Name,
				Detail:     fmt.Sprintf("failed to rewrite artifacts: %v", err),
				Remediable: true,
			})
			continue
		}
		repairedAny = true
		report.Repaired = append(report.Repaired, fmt.Sprintf("%s address updated to %s", h.Name, addr))
		report.Issues = append(report.Issues, Finding{
			Category:   CategoryIPConsistency,
			Severity:   SeverityWarning,
			Host:       h.Name,
			Detail:     fmt.Sprintf("recorded address updated to %s", addr),
			Remediable: true,
		})
	}

	if repairedAny && r.RefreshState {
		if err := r.State.Refresh(ctx); err != nil {
			report.Issues = append(report.Issues, Finding{
				Category: CategoryIPConsistency,
				Severity: SeverityWarning,
				Detail:   fmt.Sprintf("provisioning-state refresh failed: %v", err),
			})
		}
	}
}

// checkVolumes counts attached non-root block devices per reachable
// host. Best effort and warning only.
func (r *Reconciler) checkVolumes(ctx context.Context, reachable []inventory.Host, report *Report) {
	for _, h := range reachable {
		out, err := r.Remote.Run(ctx, h.Address, 22, r.Config.AdminUser, volumeCountCommand)
		if err != nil {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(out))
		if err != nil {
			continue
		}
		attached := n - 1 // minus the root device
		if attached < h.DataVolumes {
			report.Issues = append(report.Issues, Finding{
				Category: CategoryVolume,
				Severity: SeverityWarning,
				Host:     h.Name,
				Detail:   fmt.Sprintf("%d data volumes attached, expected %d", attached, h.DataVolumes),
			})
		}
	}
}

// checkClusterState queries aggregate cluster status from exactly one
// node of a multi-node deployment.
func (r *Reconciler) checkClusterState(ctx context.Context, hosts, reachable []inventory.Host, report *Report) {
	if len(hosts) <= 1 || len(reachable) == 0 {
		return
	}
	h := reachable[0]
	out, err := r.Remote.Run(ctx, h.Address, 22, r.Config.AdminUser, clusterStateCommand)
	if err != nil {
		report.Issues = append(report.Issues, Finding{
			Category: CategoryClusterState,
			Severity: SeverityCritical,
			Host:     h.Name,
			Detail:   fmt.Sprintf("cluster status query failed: %v", err),
		})
		return
	}
	if status := strings.TrimSpace(out); status != "ONLINE" {
		report.Issues = append(report.Issues, Finding{
			Category: CategoryClusterState,
			Severity: SeverityCritical,
			Host:     h.Name,
			Detail:   fmt.Sprintf("cluster status is %s", status),
		})
	}
}

// checkInstanceCount compares the live instance count against the
// recorded cluster size. Skipped when the provider has no API
// integration.
func (r *Reconciler) checkInstanceCount(ctx context.Context, report *Report) {
	if r.Instances == nil {
		return
	}
	n, err := r.Instances.CountInstances(ctx, r.Config.Name)
	if err != nil {
		report.Issues = append(report.Issues, Finding{
			Category: CategoryInstanceCount,
			Severity: SeverityWarning,
			Detail:   fmt.Sprintf("instance count query failed: %v", err),
		})
		return
	}
	if n != r.Config.ClusterSize {
		report.Issues = append(report.Issues, Finding{
			Category: CategoryInstanceCount,
			Severity: SeverityCritical,
			Detail:   fmt.Sprintf("%d instances live, cluster size is %d", n, r.Config.ClusterSize),
		})
	}
}
