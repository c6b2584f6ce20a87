// Package health detects and optionally repairs drift between the live
// cluster and the locally cached artifacts.
package health

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// HistoryFile is the append-only per-deployment health summary log.
const HistoryFile = "health-history.jsonl"

// Finding categories.
const (
	CategoryReachability  = "reachability"
	CategoryService       = "service"
	CategoryIPConsistency = "ip-consistency"
	CategoryVolume        = "volume"
	CategoryClusterState  = "cluster-state"
	CategoryInstanceCount = "cloud-instance-count"
)

// Finding severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Finding is one detected issue. Findings are computed fresh on every
// invocation and never persisted individually.
type Finding struct {
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	Host       string `json:"host,omitempty"`
	Detail     string `json:"detail"`
	Remediable bool   `json:"remediable"`
}

// Report is the result of one reconciler run. IssuesCount is computed
// once, before any rendering, and always equals len(Issues).
type Report struct {
	Timestamp        time.Time `json:"timestamp"`
	HostsReachable   int       `json:"hosts_reachable"`
	HostsUnreachable int       `json:"hosts_unreachable"`
	ServicesOK       int       `json:"services_ok"`
	ServicesFailed   int       `json:"services_failed"`
	Issues           []Finding `json:"issues"`
	IssuesCount      int       `json:"issues_count"`
	Repaired         []string  `json:"repaired,omitempty"`
	RepairFailed     bool      `json:"repair_failed,omitempty"`
}

// Exit codes distinguishing the three health outcomes. 1 is left to
// generic command errors.
const (
	ExitHealthy      = 0
	ExitIssues       = 2
	ExitRepairFailed = 3
)

// ExitCode maps the report to the command exit code.
func (r *Report) ExitCode() int {
	switch {
	case r.RepairFailed:
		return ExitRepairFailed
	case r.IssuesCount > 0:
		return ExitIssues
	default:
		return ExitHealthy
	}
}

// historyRecord is one line of the health history log.
type historyRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Pass      bool      `json:"pass"`
	Findings  int       `json:"findings"`
}

// appendHistory records the run summary. Called on every invocation,
// repair or not.
func appendHistory(dir string, report *Report) error {
	f, err := os.OpenFile(filepath.Join(dir, HistoryFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open health history: %w", err)
	}
	defer f.Close()

	rec := historyRecord{
		Timestamp: report.Timestamp,
		Pass:      report.IssuesCount == 0,
		Findings:  report.IssuesCount,
	}
	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("failed to append health history: %w", err)
	}
	return nil
}
