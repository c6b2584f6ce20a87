// Package provider holds the static capability table for the supported
// cloud providers plus the API integrations used for instance counting and
// native power control.
//
// Lifecycle commands consult capabilities instead of switching on provider
// names; adding a provider means adding a registry entry and, optionally,
// an API client.
package provider

import (
	"context"
	"fmt"
	"slices"
)

// ClusterTag is the tag/label key that marks cloud instances as belonging
// to a deployment. Its value is the cluster name.
const ClusterTag = "dbforge-cluster"

// Capabilities describes what a provider supports.
type Capabilities struct {
	// NativePowerControl means start/stop go through the provider API
	// instead of a targeted provisioning run.
	NativePowerControl bool
	// SpotInstances means the provider offers interruptible capacity.
	SpotInstances bool
	// Architectures lists the CPU architectures deployable on the
	// provider.
	Architectures []string
	// InstanceCountAPI means the health reconciler can compare the live
	// instance count against the recorded cluster size. Providers
	// without it skip that check.
	InstanceCountAPI bool
}

// SupportsArchitecture reports whether arch is deployable.
func (c Capabilities) SupportsArchitecture(arch string) bool {
	return slices.Contains(c.Architectures, arch)
}

var registry = map[string]Capabilities{
	"aws": {
		NativePowerControl: true,
		SpotInstances:      true,
		Architectures:      []string{"x86_64", "arm64"},
		InstanceCountAPI:   true,
	},
	"hetzner": {
		NativePowerControl: true,
		SpotInstances:      false,
		Architectures:      []string{"x86_64", "arm64"},
		InstanceCountAPI:   true,
	},
	"gcp": {
		NativePowerControl: false,
		SpotInstances:      true,
		Architectures:      []string{"x86_64", "arm64"},
		InstanceCountAPI:   false,
	},
	"azure": {
		NativePowerControl: false,
		SpotInstances:      true,
		Architectures:      []string{"x86_64"},
		InstanceCountAPI:   false,
	},
}

// Lookup returns the capabilities of the named provider.
func Lookup(name string) (Capabilities, error) {
	caps, ok := registry[name]
	if !ok {
		return Capabilities{}, fmt.Errorf("unknown provider: %s", name)
	}
	return caps, nil
}

// InstanceAPI is the provider-side integration for deployments whose
// provider has one. Both methods address instances by the cluster tag.
type InstanceAPI interface {
	// CountInstances returns how many non-terminated instances carry the
	// cluster tag.
	CountInstances(ctx context.Context, cluster string) (int, error)

	// SetPower powers every tagged instance on or off.
	SetPower(ctx context.Context, cluster string, on bool) error
}

// Credentials carries provider API credentials from configuration and
// environment.
type Credentials struct {
	Region       string
	AWSAccessKey string
	AWSSecretKey string
	HCloudToken  string
}

// NewInstanceAPI returns the API integration for the named provider, or
// nil when the provider has none.
func NewInstanceAPI(ctx context.Context, name string, creds Credentials) (InstanceAPI, error) {
	caps, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if !caps.InstanceCountAPI {
		return nil, nil
	}
	switch name {
	case "aws":
		return NewAWSClient(ctx, creds.Region, creds.AWSAccessKey, creds.AWSSecretKey)
	case "hetzner":
		if creds.HCloudToken == "" {
			return nil, fmt.Errorf("HCLOUD_TOKEN is required for hetzner")
		}
		return NewHetznerClient(creds.HCloudToken), nil
	}
	return nil, nil
}
