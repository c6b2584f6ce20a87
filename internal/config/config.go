// Package config defines the per-deployment configuration for dbforge.
//
// Each deployment directory carries a dbforge.yaml describing the cluster:
// cloud provider, database version, architecture, node count, and the
// remote-access accounts used for health checking. The file is written once
// by init and read by every lifecycle command.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// FileName is the deployment configuration file inside a deployment directory.
const FileName = "dbforge.yaml"

// Supported providers.
const (
	ProviderAWS     = "aws"
	ProviderGCP     = "gcp"
	ProviderAzure   = "azure"
	ProviderHetzner = "hetzner"
)

// Config holds the deployment configuration.
type Config struct {
	Name         string `yaml:"name"`
	Provider     string `yaml:"provider"`
	DBVersion    string `yaml:"db_version" mapstructure:"db_version"`
	Architecture string `yaml:"architecture"`
	ClusterSize  int    `yaml:"cluster_size" mapstructure:"cluster_size"`
	Region       string `yaml:"region"`

	// Remote access accounts. The admin account is the normal management
	// path; the recovery account listens on a separate port and stays
	// reachable when the database stack wedges the primary one.
	AdminUser    string `yaml:"admin_user" mapstructure:"admin_user"`
	RecoveryUser string `yaml:"recovery_user" mapstructure:"recovery_user"`
	RecoveryPort int    `yaml:"recovery_port" mapstructure:"recovery_port"`

	// RequiredServices are the systemd units every node must keep active.
	RequiredServices []string `yaml:"required_services" mapstructure:"required_services"`

	// DataVolumes is the expected number of attached non-root block
	// devices per node.
	DataVolumes int `yaml:"data_volumes" mapstructure:"data_volumes"`

	AWS AWSConfig `yaml:"aws"`
}

// AWSConfig holds optional static AWS credentials. When empty the default
// credential chain (environment, shared config, instance profile) is used.
type AWSConfig struct {
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
}

// LoadDir reads and parses the configuration from a deployment directory.
func LoadDir(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration into the deployment directory.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Architecture == "" {
		c.Architecture = "x86_64"
	}
	if c.AdminUser == "" {
		c.AdminUser = "dbadmin"
	}
	if c.RecoveryUser == "" {
		c.RecoveryUser = "dbrecovery"
	}
	if c.RecoveryPort == 0 {
		c.RecoveryPort = 2222
	}
	if len(c.RequiredServices) == 0 {
		c.RequiredServices = []string{"dbforge-node", "dbforge-agent", "chronyd"}
	}
	if c.DataVolumes == 0 {
		c.DataVolumes = 1
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderAWS, ProviderGCP, ProviderAzure, ProviderHetzner:
	case "":
		return fmt.Errorf("provider is required")
	default:
		return fmt.Errorf("unsupported provider: %s", c.Provider)
	}

	if c.DBVersion == "" {
		return fmt.Errorf("db_version is required")
	}
	if c.ClusterSize < 1 {
		return fmt.Errorf("cluster_size must be at least 1, got %d", c.ClusterSize)
	}

	switch c.Architecture {
	case "x86_64", "arm64":
	default:
		return fmt.Errorf("unsupported architecture: %s", c.Architecture)
	}

	return nil
}
