package handlers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dbforge/dbforge/internal/config"
	"github.com/dbforge/dbforge/internal/health"
	"github.com/dbforge/dbforge/internal/inventory"
	"github.com/dbforge/dbforge/internal/progress"
	"github.com/dbforge/dbforge/internal/provider"
	"github.com/dbforge/dbforge/internal/runner"
	"github.com/dbforge/dbforge/internal/state"
	"github.com/dbforge/dbforge/internal/util/retry"
)

// powerTargets are the template resources a targeted power apply touches.
// Every provider template exposes its compute under this module.
var powerTargets = []string{"module.nodes"}

// Bounds for the post-start reachability wait.
const (
	waitInterval = 10 * time.Second
	waitTimeout  = 5 * time.Minute
)

// waitForCluster blocks until every node answers a trivial command on the
// admin path. Replaced in tests.
var waitForCluster = func(ctx context.Context, dir string, cfg *config.Config) error {
	remote, err := health.NewSSHRunner(dir)
	if err != nil {
		return err
	}
	hosts, err := inventory.Hosts(dir)
	if err != nil {
		return err
	}
	return retry.WaitFor(ctx, waitInterval, waitTimeout, func(ctx context.Context) (bool, error) {
		for _, h := range hosts {
			if _, err := remote.Run(ctx, h.Address, 22, cfg.AdminUser, "true"); err != nil {
				return false, nil
			}
		}
		return true, nil
	})
}

// Start powers a stopped cluster back on.
func Start(ctx context.Context, dir, mode string) error {
	return power(ctx, dir, mode, state.OpStart)
}

// Stop powers a running cluster down without destroying it.
func Stop(ctx context.Context, dir, mode string) error {
	return power(ctx, dir, mode, state.OpStop)
}

// power flips the cluster power state, natively where the provider
// supports it and through a targeted provisioning apply otherwise.
func power(ctx context.Context, dir, mode string, op state.Operation) error {
	cfg, store, err := loadDeployment(dir)
	if err != nil {
		return err
	}
	caps, err := provider.Lookup(cfg.Provider)
	if err != nil {
		return err
	}

	guard, err := state.Begin(store, op)
	if err != nil {
		return err
	}
	defer guard.Close()

	on := op == state.OpStart
	stage := string(op)
	totalLines := 0

	err = withProgress(dir, mode, cfg.Name, stage, progress.PowerSteps, func(sink progress.Sink) error {
		rep := progress.NewReporter(stage, progress.PowerSteps, sink)

		if caps.NativePowerControl {
			rep.StepStarted("power-apply", "switching instance power via provider API")
			api, err := newInstanceAPI(ctx, cfg.Provider, credentials(cfg))
			if err == nil && api == nil {
				err = fmt.Errorf("provider %s has no power API integration", cfg.Provider)
			}
			if err == nil {
				err = api.SetPower(ctx, cfg.Name, on)
			}
			if err != nil {
				rep.StepFailed("power-apply", err.Error())
				return err
			}
			rep.StepCompleted("power-apply", "")
		} else {
			tf := newTerraform(dir)
			err := runStep(rep, "power-apply", "switching instance power via targeted apply", progress.Estimate{}, &totalLines,
				func(onLine func(string)) (*runner.Result, error) {
					return tf.PowerApply(ctx, on, powerTargets, onLine)
				})
			if err != nil {
				return err
			}
		}

		rep.StepStarted("wait-cluster", "waiting for cluster state")
		if on {
			if err := waitForCluster(ctx, dir, cfg); err != nil {
				rep.StepFailed("wait-cluster", err.Error())
				return fmt.Errorf("cluster did not come back: %w", err)
			}
		}
		rep.StepCompleted("wait-cluster", "")
		return nil
	})
	if err != nil {
		return err
	}

	if err := store.SetStatus(op.SuccessStatus()); err != nil {
		return err
	}
	guard.Succeed()

	if on {
		log.Printf("Cluster %s started", cfg.Name)
	} else {
		log.Printf("Cluster %s stopped", cfg.Name)
	}
	return nil
}
