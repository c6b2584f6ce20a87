// Package terraform drives the provisioning tool against a deployment's
// template directory. It shells out rather than linking a library: the
// tool's exit code is authoritative and its stdout is parsed upstream into
// progress events.
package terraform

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dbforge/dbforge/internal/runner"
)

// TemplateDir is the template subdirectory inside a deployment directory.
const TemplateDir = "terraform"

// Driver runs terraform subcommands for one deployment.
type Driver struct {
	// Bin is the terraform binary; overridable for tests.
	Bin string
	dir string
}

// New creates a Driver working against the template directory of the given
// deployment directory.
func New(deploymentDir string) *Driver {
	return &Driver{Bin: "terraform", dir: filepath.Join(deploymentDir, TemplateDir)}
}

// Dir returns the template directory the driver operates on.
func (d *Driver) Dir() string { return d.dir }

func (d *Driver) run(ctx context.Context, onLine func(string), args ...string) (*runner.Result, error) {
	return runner.Run(ctx, runner.Command{
		Name: d.Bin,
		Args: args,
		Dir:  d.dir,
	}, onLine)
}

// Init runs terraform init.
func (d *Driver) Init(ctx context.Context, onLine func(string)) (*runner.Result, error) {
	return d.run(ctx, onLine, "init", "-no-color", "-input=false")
}

// Plan runs terraform plan. The plan summary line feeds the progress
// parser's unit counting for the following apply.
func (d *Driver) Plan(ctx context.Context, onLine func(string)) (*runner.Result, error) {
	return d.run(ctx, onLine, "plan", "-no-color", "-input=false")
}

// Apply runs terraform apply.
func (d *Driver) Apply(ctx context.Context, onLine func(string)) (*runner.Result, error) {
	return d.run(ctx, onLine, "apply", "-auto-approve", "-no-color", "-input=false")
}

// Destroy runs terraform destroy.
func (d *Driver) Destroy(ctx context.Context, onLine func(string)) (*runner.Result, error) {
	return d.run(ctx, onLine, "destroy", "-auto-approve", "-no-color", "-input=false")
}

// Refresh reconciles recorded provisioning state with live infrastructure
// without changing it.
func (d *Driver) Refresh(ctx context.Context, onLine func(string)) (*runner.Result, error) {
	return d.run(ctx, onLine, "apply", "-refresh-only", "-auto-approve", "-no-color", "-input=false")
}

// PowerApply performs a targeted partial apply that only flips the power
// state of the compute resources, leaving everything else untouched.
func (d *Driver) PowerApply(ctx context.Context, running bool, targets []string, onLine func(string)) (*runner.Result, error) {
	args := []string{"apply", "-auto-approve", "-no-color", "-input=false",
		fmt.Sprintf("-var=power_on=%t", running)}
	for _, t := range targets {
		args = append(args, "-target="+t)
	}
	return d.run(ctx, onLine, args...)
}

// Output returns the deployment's terraform outputs. The node_ips output
// is the provisioning tool's view of the cluster addresses.
func (d *Driver) Output(ctx context.Context) (map[string]json.RawMessage, error) {
	var buf []byte
	_, err := d.run(ctx, func(line string) {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}, "output", "-json")
	if err != nil {
		return nil, err
	}

	// terraform output -json wraps every value in {value, type}.
	var raw map[string]struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse terraform output: %w", err)
	}
	out := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		out[k] = v.Value
	}
	return out, nil
}

// NodeIPs returns the node_ips output as host -> address.
func (d *Driver) NodeIPs(ctx context.Context) (map[string]string, error) {
	outputs, err := d.Output(ctx)
	if err != nil {
		return nil, err
	}
	raw, ok := outputs["node_ips"]
	if !ok {
		return nil, fmt.Errorf("terraform output has no node_ips")
	}
	var ips map[string]string
	if err := json.Unmarshal(raw, &ips); err != nil {
		return nil, fmt.Errorf("failed to parse node_ips output: %w", err)
	}
	return ips, nil
}
