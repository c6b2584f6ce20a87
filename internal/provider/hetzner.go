package provider

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// hcloudServerAPI is the slice of the Hetzner server client the
// integration uses.
type hcloudServerAPI interface {
	AllWithOpts(ctx context.Context, opts hcloud.ServerListOpts) ([]*hcloud.Server, error)
	Poweron(ctx context.Context, server *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)
	Poweroff(ctx context.Context, server *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)
}

// HetznerClient implements InstanceAPI against the Hetzner Cloud API.
type HetznerClient struct {
	servers hcloudServerAPI
}

// NewHetznerClient builds a Hetzner client from an API token.
func NewHetznerClient(token string) *HetznerClient {
	client := hcloud.NewClient(hcloud.WithToken(token))
	return &HetznerClient{servers: &client.Server}
}

// CountInstances counts servers labeled with the cluster name.
func (c *HetznerClient) CountInstances(ctx context.Context, cluster string) (int, error) {
	servers, err := c.list(ctx, cluster)
	if err != nil {
		return 0, err
	}
	return len(servers), nil
}

// SetPower powers every labeled server on or off.
func (c *HetznerClient) SetPower(ctx context.Context, cluster string, on bool) error {
	servers, err := c.list(ctx, cluster)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		return fmt.Errorf("no servers labeled %s=%s", ClusterTag, cluster)
	}

	for _, srv := range servers {
		if on {
			_, _, err = c.servers.Poweron(ctx, srv)
		} else {
			_, _, err = c.servers.Poweroff(ctx, srv)
		}
		if err != nil {
			return fmt.Errorf("failed to change power state of %s: %w", srv.Name, err)
		}
	}
	return nil
}

func (c *HetznerClient) list(ctx context.Context, cluster string) ([]*hcloud.Server, error) {
	servers, err := c.servers.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: ClusterTag + "=" + cluster},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, nil
}
