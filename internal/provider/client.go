// Package provider implements the gateway to the managed-Kubernetes
// provider's cluster, node-pool, region and pricing API. Calls are
// synchronous round trips; failures surface as ProviderError and are never
// retried here because not every operation is idempotent. Retry policy
// belongs to the caller.
package provider

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/dsyorkd/fleet-controller/internal/errors"
	"github.com/dsyorkd/fleet-controller/internal/logger"
)

// Config contains provider API client settings
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is the provider API gateway
type Client struct {
	http *resty.Client
	log  logger.Interface
}

// New creates a new provider gateway. A missing credential is a fatal
// configuration error distinct from any request failure.
func New(cfg Config, log logger.Interface) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.NewConfigError("provider.token", "managed-Kubernetes provider credential is not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.digitalocean.com/v2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.Token).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http: http,
		log:  log.WithField("component", "provider"),
	}, nil
}

// CreateCluster provisions a new managed cluster
func (c *Client) CreateCluster(ctx context.Context, req *ClusterCreateRequest) (*Cluster, error) {
	var root clusterRoot
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&root).
		SetError(&apiError{}).
		Post("/kubernetes/clusters")
	if err := c.check("create cluster", resp, err); err != nil {
		return nil, err
	}
	return root.KubernetesCluster, nil
}

// GetCluster fetches the current provider-side state of a cluster
func (c *Client) GetCluster(ctx context.Context, clusterID string) (*Cluster, error) {
	var root clusterRoot
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&root).
		SetError(&apiError{}).
		Get(fmt.Sprintf("/kubernetes/clusters/%s", clusterID))
	if err := c.check("get cluster", resp, err); err != nil {
		return nil, err
	}
	return root.KubernetesCluster, nil
}

// GetKubeconfig fetches the cluster's kubeconfig as an opaque blob
func (c *Client) GetKubeconfig(ctx context.Context, clusterID string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		Get(fmt.Sprintf("/kubernetes/clusters/%s/kubeconfig", clusterID))
	if err := c.check("get kubeconfig", resp, err); err != nil {
		return nil, err
	}
	return resp.Bytes(), nil
}

// DeleteCluster deletes a cluster and all of its node pools
func (c *Client) DeleteCluster(ctx context.Context, clusterID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		Delete(fmt.Sprintf("/kubernetes/clusters/%s", clusterID))
	return c.check("delete cluster", resp, err)
}

// AddNodePool adds a node pool to a running cluster
func (c *Client) AddNodePool(ctx context.Context, clusterID string, req *NodePoolCreateRequest) (*NodePool, error) {
	var root nodePoolRoot
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&root).
		SetError(&apiError{}).
		Post(fmt.Sprintf("/kubernetes/clusters/%s/node_pools", clusterID))
	if err := c.check("add node pool", resp, err); err != nil {
		return nil, err
	}
	return root.NodePool, nil
}

// UpdateNodePool resizes or reconfigures an existing node pool
func (c *Client) UpdateNodePool(ctx context.Context, clusterID, poolID string, req *NodePoolUpdateRequest) (*NodePool, error) {
	var root nodePoolRoot
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&root).
		SetError(&apiError{}).
		Put(fmt.Sprintf("/kubernetes/clusters/%s/node_pools/%s", clusterID, poolID))
	if err := c.check("update node pool", resp, err); err != nil {
		return nil, err
	}
	return root.NodePool, nil
}

// DeleteNodePool removes a node pool from a cluster
func (c *Client) DeleteNodePool(ctx context.Context, clusterID, poolID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		Delete(fmt.Sprintf("/kubernetes/clusters/%s/node_pools/%s", clusterID, poolID))
	return c.check("delete node pool", resp, err)
}

// UpgradeHA upgrades the cluster to a highly-available control plane
func (c *Client) UpgradeHA(ctx context.Context, clusterID string) (*Cluster, error) {
	var root clusterRoot
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]bool{"ha": true}).
		SetResult(&root).
		SetError(&apiError{}).
		Put(fmt.Sprintf("/kubernetes/clusters/%s", clusterID))
	if err := c.check("upgrade ha", resp, err); err != nil {
		return nil, err
	}
	return root.KubernetesCluster, nil
}

// ListSizes lists available instance sizes with pricing
func (c *Client) ListSizes(ctx context.Context) ([]Size, error) {
	var root sizesRoot
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("per_page", "200").
		SetResult(&root).
		SetError(&apiError{}).
		Get("/sizes")
	if err := c.check("list sizes", resp, err); err != nil {
		return nil, err
	}
	return root.Sizes, nil
}

// ListRegions lists available regions
func (c *Client) ListRegions(ctx context.Context) ([]Region, error) {
	var root regionsRoot
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("per_page", "200").
		SetResult(&root).
		SetError(&apiError{}).
		Get("/regions")
	if err := c.check("list regions", resp, err); err != nil {
		return nil, err
	}
	return root.Regions, nil
}

// check normalizes transport and API errors into ProviderError
func (c *Client) check(operation string, resp *resty.Response, err error) error {
	if err != nil {
		return errors.NewProviderError(operation, 0, err.Error())
	}
	if resp.IsError() {
		message := resp.Status()
		if apiErr, ok := resp.Error().(*apiError); ok && apiErr.Message != "" {
			message = apiErr.Message
		}
		c.log.WithFields(map[string]interface{}{
			"operation": operation,
			"status":    resp.StatusCode(),
		}).Warn("Provider API call failed")
		return errors.NewProviderError(operation, resp.StatusCode(), message)
	}
	return nil
}
