package handlers

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dbforge/dbforge/internal/inventory"
	"github.com/dbforge/dbforge/internal/progress"
	"github.com/dbforge/dbforge/internal/runner"
	"github.com/dbforge/dbforge/internal/state"
)

// confirmDestroy prompts for the cluster name before an irreversible
// teardown - can be replaced in tests.
var confirmDestroy = func(name string) (bool, error) {
	fmt.Printf("This permanently destroys cluster %q and all its data.\n", name)
	fmt.Printf("Type the cluster name to confirm: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(line) == name, nil
}

// Destroy tears the cluster down and removes the address artifacts. The
// deployment directory itself, the configuration, and all backups stay.
// Unless force is set the user must confirm with the cluster name first;
// a declined prompt leaves status and lock untouched.
func Destroy(ctx context.Context, dir, mode string, force bool) error {
	cfg, store, err := loadDeployment(dir)
	if err != nil {
		return err
	}
	if !force {
		ok, err := confirmDestroy(cfg.Name)
		if err != nil {
			return fmt.Errorf("failed to prompt for confirmation: %w", err)
		}
		if !ok {
			log.Printf("destroy of %s aborted", cfg.Name)
			return nil
		}
	}
	guard, err := state.Begin(store, state.OpDestroy)
	if err != nil {
		return err
	}
	defer guard.Close()

	metrics := openMetrics()
	tf := newTerraform(dir)
	start := time.Now()
	totalLines := 0

	err = withProgress(dir, mode, cfg.Name, "destroy", progress.DestroySteps, func(sink progress.Sink) error {
		rep := progress.NewReporter("destroy", progress.DestroySteps, sink)

		est := progress.Estimate{}
		if metrics != nil {
			est = metrics.EstimateLines(cfg.Provider, "destroy", cfg.ClusterSize)
		}
		err := runStep(rep, "terraform-destroy", "destroying infrastructure", est, &totalLines,
			func(onLine func(string)) (*runner.Result, error) { return tf.Destroy(ctx, onLine) })
		if err != nil {
			return err
		}

		rep.StepStarted("cleanup", "removing cluster artifacts")
		for _, name := range []string{inventory.InventoryFile, inventory.SSHConfigFile, inventory.InfoFile} {
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
				rep.StepFailed("cleanup", err.Error())
				return err
			}
		}
		rep.StepCompleted("cleanup", "")
		return nil
	})
	if err != nil {
		return err
	}

	if err := store.SetStatus(state.OpDestroy.SuccessStatus()); err != nil {
		return err
	}
	guard.Succeed()

	recordSample(metrics, cfg, "destroy", totalLines, int(time.Since(start).Seconds()))
	log.Printf("Cluster %s destroyed", cfg.Name)
	return nil
}
