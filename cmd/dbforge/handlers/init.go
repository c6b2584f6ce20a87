package handlers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dbforge/dbforge/internal/ansible"
	"github.com/dbforge/dbforge/internal/config"
	"github.com/dbforge/dbforge/internal/provider"
	"github.com/dbforge/dbforge/internal/state"
	"github.com/dbforge/dbforge/internal/terraform"
	"github.com/dbforge/dbforge/internal/util/keygen"
)

// InitOptions are the init command inputs.
type InitOptions struct {
	Dir          string
	Name         string
	Provider     string
	DBVersion    string
	Architecture string
	ClusterSize  int
	Region       string
}

// Init creates a new deployment directory: configuration, state file,
// access keypair, and the template skeleton the provisioning and
// configuration tools run against.
func Init(opts InitOptions) error {
	if opts.Architecture == "" {
		opts.Architecture = "x86_64"
	}
	caps, err := provider.Lookup(opts.Provider)
	if err != nil {
		return err
	}
	if !caps.SupportsArchitecture(opts.Architecture) {
		return fmt.Errorf("provider %s does not support architecture %s", opts.Provider, opts.Architecture)
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create deployment directory: %w", err)
	}
	name := opts.Name
	if name == "" {
		abs, err := filepath.Abs(opts.Dir)
		if err != nil {
			return err
		}
		name = filepath.Base(abs)
	}

	cfg := &config.Config{
		Name:         name,
		Provider:     opts.Provider,
		DBVersion:    opts.DBVersion,
		Architecture: opts.Architecture,
		ClusterSize:  opts.ClusterSize,
		Region:       opts.Region,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(opts.Dir); err != nil {
		return err
	}

	if _, err := state.NewStore(opts.Dir).Init(opts.Provider, opts.DBVersion, opts.Architecture, opts.ClusterSize); err != nil {
		return err
	}

	keys, err := keygen.GenerateKeyPair(name)
	if err != nil {
		return err
	}
	if err := keys.WriteTo(opts.Dir); err != nil {
		return err
	}

	for _, sub := range []string{terraform.TemplateDir, ansible.PlaybookDir} {
		if err := os.MkdirAll(filepath.Join(opts.Dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	log.Printf("Initialized deployment %s (%s, %d nodes) in %s", name, opts.Provider, opts.ClusterSize, opts.Dir)
	return nil
}
