package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/dbforge/dbforge/internal/health"
	"github.com/dbforge/dbforge/internal/provider"
	"github.com/dbforge/dbforge/internal/state"
)

// HealthOptions are the health command inputs.
type HealthOptions struct {
	Dir          string
	Repair       bool
	RefreshState bool
	JSON         bool
}

// Health runs the reconciler and renders the report. The returned report
// carries the command exit code; the command layer applies it.
func Health(ctx context.Context, opts HealthOptions) (*health.Report, error) {
	cfg, store, err := loadDeployment(opts.Dir)
	if err != nil {
		return nil, err
	}
	guard, err := state.Begin(store, state.OpHealth)
	if err != nil {
		return nil, err
	}
	defer guard.Close()

	remote, err := health.NewSSHRunner(opts.Dir)
	if err != nil {
		return nil, err
	}

	var instances provider.InstanceAPI
	if api, err := newInstanceAPI(ctx, cfg.Provider, credentials(cfg)); err != nil {
		log.Printf("warning: provider API unavailable, skipping instance-count check: %v", err)
	} else if api != nil {
		instances = api
	}

	rec := &health.Reconciler{
		Dir:          opts.Dir,
		Config:       cfg,
		Remote:       remote,
		State:        tfState{driver: newTerraform(opts.Dir)},
		Instances:    instances,
		Repair:       opts.Repair,
		RefreshState: opts.RefreshState,
	}
	report, err := rec.Run(ctx)
	if err != nil {
		return nil, err
	}
	guard.Succeed()

	// The report's counts were settled inside Run; both renderers only
	// format them.
	if opts.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return nil, err
		}
	} else {
		renderHealthText(report)
	}
	return report, nil
}

func renderHealthText(report *health.Report) {
	fmt.Printf("Hosts:    %d reachable, %d unreachable\n", report.HostsReachable, report.HostsUnreachable)
	fmt.Printf("Services: %d active, %d failed\n", report.ServicesOK, report.ServicesFailed)

	if report.IssuesCount == 0 {
		fmt.Println("No issues found.")
		return
	}

	fmt.Printf("Issues (%d):\n", report.IssuesCount)
	for _, issue := range report.Issues {
		host := ""
		if issue.Host != "" {
			host = " [" + issue.Host + "]"
		}
		fmt.Printf("  - %s/%s%s: %s\n", issue.Severity, issue.Category, host, issue.Detail)
	}
	for _, r := range report.Repaired {
		fmt.Printf("  repaired: %s\n", r)
	}
	if report.RepairFailed {
		fmt.Println("Some repairs failed; see issues above.")
	}
}
