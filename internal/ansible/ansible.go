// Package ansible drives the configuration tool against a deployment's
// inventory. Like the provisioning driver it shells out; task markers in
// the streamed stdout feed the progress parser.
package ansible

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dbforge/dbforge/internal/runner"
)

// Default artifact names inside a deployment directory.
const (
	InventoryFile = "inventory.yml"
	PlaybookDir   = "playbooks"
)

// Driver runs configuration playbooks for one deployment.
type Driver struct {
	// Bin is the ansible-playbook binary; overridable for tests.
	Bin string
	dir string
}

// New creates a Driver for the given deployment directory.
func New(deploymentDir string) *Driver {
	return &Driver{Bin: "ansible-playbook", dir: deploymentDir}
}

// Playbook runs one playbook against the deployment inventory, streaming
// stdout to onLine. Extra variables are passed as key=value pairs.
func (d *Driver) Playbook(ctx context.Context, name string, extraVars map[string]string, onLine func(string)) (*runner.Result, error) {
	args := []string{
		"-i", filepath.Join(d.dir, InventoryFile),
		filepath.Join(d.dir, PlaybookDir, name),
	}
	for k, v := range extraVars {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	return runner.Run(ctx, runner.Command{
		Name: d.Bin,
		Args: args,
		Dir:  d.dir,
		// The configuration tool buffers per host; force line-oriented
		// output so streaming classification works.
		Env: []string{"ANSIBLE_FORCE_COLOR=0", "PYTHONUNBUFFERED=1"},
	}, onLine)
}
