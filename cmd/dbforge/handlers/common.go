// Package handlers implements the lifecycle command logic.
//
// Commands in the commands package are thin cobra definitions; everything
// they do runs through here. Each lifecycle handler opens one
// OperationGuard, streams at most one subprocess at a time through the
// progress pipeline, and lets the guard settle status and lock on every
// exit path.
package handlers

import (
	"context"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dbforge/dbforge/internal/ansible"
	"github.com/dbforge/dbforge/internal/config"
	"github.com/dbforge/dbforge/internal/progress"
	"github.com/dbforge/dbforge/internal/provider"
	"github.com/dbforge/dbforge/internal/state"
	"github.com/dbforge/dbforge/internal/terraform"
	"github.com/dbforge/dbforge/internal/ui/tui"
)

// Progress output modes.
const (
	ProgressText = "text"
	ProgressJSON = "json"
	ProgressTUI  = "tui"
)

// NoColor disables styled terminal output. Bound to the global --no-color
// flag by the commands package.
var NoColor bool

// Factory function variables - can be replaced in tests.
var (
	newTerraform = terraform.New
	newAnsible   = ansible.New

	openMetrics = func() *progress.Repository {
		path, err := progress.DefaultMetricsPath()
		if err != nil {
			return nil
		}
		repo, err := progress.OpenRepository(path)
		if err != nil {
			log.Printf("warning: metrics history unavailable: %v", err)
			return nil
		}
		return repo
	}

	newInstanceAPI = provider.NewInstanceAPI
)

// loadDeployment reads the configuration and opens the state store of a
// deployment directory.
func loadDeployment(dir string) (*config.Config, *state.Store, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, nil, fmt.Errorf("deployment directory %s: %w", dir, err)
	}
	cfg, err := config.LoadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	return cfg, state.NewStore(dir), nil
}

// credentials assembles the provider API credentials from the config and
// the environment.
func credentials(cfg *config.Config) provider.Credentials {
	return provider.Credentials{
		Region:       cfg.Region,
		AWSAccessKey: cfg.AWS.AccessKey,
		AWSSecretKey: cfg.AWS.SecretKey,
		HCloudToken:  os.Getenv("HCLOUD_TOKEN"),
	}
}

// withProgress builds the sink stack for one stage invocation and runs fn
// against it. The journal is always attached; mode selects the live
// consumer. In TUI mode fn runs in a goroutine while the program owns the
// terminal.
func withProgress(dir, mode, cluster, stage string, steps []progress.StepWeight, fn func(progress.Sink) error) error {
	journal, err := progress.OpenJournal(dir)
	if err != nil {
		return err
	}
	defer func() { _ = journal.Close() }()

	switch mode {
	case ProgressJSON:
		return fn(progress.MultiSink{journal, progress.NewJSONSink(os.Stdout)})
	case ProgressTUI:
		program := tea.NewProgram(tui.NewModel(cluster, stage, steps))
		errCh := make(chan error, 1)
		go func() {
			opErr := fn(progress.MultiSink{journal, tui.NewSink(program)})
			program.Send(tui.DoneMsg{Err: opErr})
			errCh <- opErr
		}()
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("terminal UI failed: %w", err)
		}
		return <-errCh
	default:
		return fn(progress.MultiSink{journal, progress.NewTextSink(os.Stderr, NoColor)})
	}
}

// recordSample appends one metrics sample after a successful operation.
// History is advisory; failures only log.
func recordSample(repo *progress.Repository, cfg *config.Config, operation string, lines, seconds int) {
	if repo == nil {
		return
	}
	err := repo.Append(progress.Sample{
		Provider:         cfg.Provider,
		Operation:        operation,
		NodeCount:        cfg.ClusterSize,
		TotalOutputLines: lines,
		DurationSeconds:  float64(seconds),
	})
	if err != nil {
		log.Printf("warning: failed to record metrics sample: %v", err)
	}
}

// tfState adapts the provisioning driver to the health reconciler.
type tfState struct {
	driver *terraform.Driver
}

func (s tfState) NodeIPs(ctx context.Context) (map[string]string, error) {
	return s.driver.NodeIPs(ctx)
}

func (s tfState) Refresh(ctx context.Context) error {
	_, err := s.driver.Refresh(ctx, nil)
	return err
}
