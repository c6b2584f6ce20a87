package handlers

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/dbforge/dbforge/internal/config"
	"github.com/dbforge/dbforge/internal/inventory"
	"github.com/dbforge/dbforge/internal/progress"
	"github.com/dbforge/dbforge/internal/runner"
	"github.com/dbforge/dbforge/internal/state"
	"github.com/dbforge/dbforge/internal/util/keygen"
)

// configurePlaybook is the playbook applied after provisioning.
const configurePlaybook = "site.yml"

// Deploy provisions and configures a cluster: terraform init/plan/apply,
// the configuration playbook, then the local cluster artifacts.
func Deploy(ctx context.Context, dir, mode string) error {
	cfg, store, err := loadDeployment(dir)
	if err != nil {
		return err
	}
	guard, err := state.Begin(store, state.OpDeploy)
	if err != nil {
		return err
	}
	defer guard.Close()

	metrics := openMetrics()
	tf := newTerraform(dir)
	configure := newAnsible(dir)
	start := time.Now()
	totalLines := 0

	err = withProgress(dir, mode, cfg.Name, "deploy", progress.DeploySteps, func(sink progress.Sink) error {
		rep := progress.NewReporter("deploy", progress.DeploySteps, sink)

		err := runStep(rep, "terraform-init", "initializing provisioning", progress.Estimate{}, &totalLines,
			func(onLine func(string)) (*runner.Result, error) { return tf.Init(ctx, onLine) })
		if err != nil {
			return err
		}

		err = runStep(rep, "terraform-plan", "planning infrastructure", progress.Estimate{}, &totalLines,
			func(onLine func(string)) (*runner.Result, error) { return tf.Plan(ctx, onLine) })
		if err != nil {
			return err
		}

		est := progress.Estimate{}
		if metrics != nil {
			est = metrics.EstimateLines(cfg.Provider, "deploy", cfg.ClusterSize)
		}
		err = runStep(rep, "terraform-apply", "provisioning infrastructure", est, &totalLines,
			func(onLine func(string)) (*runner.Result, error) { return tf.Apply(ctx, onLine) })
		if err != nil {
			return err
		}

		extraVars := map[string]string{
			"db_version":   cfg.DBVersion,
			"cluster_size": fmt.Sprintf("%d", cfg.ClusterSize),
		}
		err = runStep(rep, "ansible-configure", "configuring cluster", progress.Estimate{}, &totalLines,
			func(onLine func(string)) (*runner.Result, error) {
				return configure.Playbook(ctx, configurePlaybook, extraVars, onLine)
			})
		if err != nil {
			return err
		}

		rep.StepStarted("finalize", "recording cluster artifacts")
		ips, err := tf.NodeIPs(ctx)
		if err != nil {
			rep.StepFailed("finalize", err.Error())
			return err
		}
		info := inventory.Info{
			Name:      cfg.Name,
			Provider:  cfg.Provider,
			DBVersion: cfg.DBVersion,
			Hosts:     hostsFromIPs(ips, cfg.DataVolumes),
		}
		if err := inventory.WriteAll(dir, info, accessConfig(cfg)); err != nil {
			rep.StepFailed("finalize", err.Error())
			return err
		}
		rep.StepCompleted("finalize", "cluster artifacts written")
		return nil
	})
	if err != nil {
		return err
	}

	if err := store.SetStatus(state.OpDeploy.SuccessStatus()); err != nil {
		return err
	}
	guard.Succeed()

	recordSample(metrics, cfg, "deploy", totalLines, int(time.Since(start).Seconds()))
	log.Printf("Cluster %s deployed (%d nodes on %s)", cfg.Name, cfg.ClusterSize, cfg.Provider)
	return nil
}

// runStep wraps one subprocess invocation in step events and a fresh
// parser.
func runStep(rep *progress.Reporter, step, startMsg string, est progress.Estimate, total *int, run func(onLine func(string)) (*runner.Result, error)) error {
	rep.StepStarted(step, startMsg)
	parser := progress.NewParser(rep, step, est)
	res, err := run(parser.Line)
	if res != nil {
		*total += res.Lines
	}
	if err != nil {
		rep.StepFailed(step, err.Error())
		return err
	}
	rep.StepCompleted(step, "")
	return nil
}

// hostsFromIPs converts the provisioning output into inventory hosts,
// sorted by name.
func hostsFromIPs(ips map[string]string, dataVolumes int) []inventory.Host {
	hosts := make([]inventory.Host, 0, len(ips))
	for name, addr := range ips {
		hosts = append(hosts, inventory.Host{Name: name, Address: addr, DataVolumes: dataVolumes})
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name < hosts[j].Name })
	return hosts
}

func accessConfig(cfg *config.Config) inventory.AccessConfig {
	return inventory.AccessConfig{
		AdminUser:    cfg.AdminUser,
		RecoveryUser: cfg.RecoveryUser,
		RecoveryPort: cfg.RecoveryPort,
		IdentityFile: "./" + keygen.PrivateKeyFile,
	}
}
