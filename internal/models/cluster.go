package models

import (
	"errors"
	"time"
)

var (
	errInvalidRunningRecord = errors.New("running cluster must have a cluster id and endpoint")
	errInvalidErrorRecord   = errors.New("errored cluster must carry a provision error")
)

// ClusterStatus defines the possible states of an organization's cluster
type ClusterStatus string

const (
	ClusterStatusNone         ClusterStatus = "none"
	ClusterStatusProvisioning ClusterStatus = "provisioning"
	ClusterStatusRunning      ClusterStatus = "running"
	ClusterStatusError        ClusterStatus = "error"
	ClusterStatusDeleting     ClusterStatus = "deleting"
)

// ClusterRecord is the cached projection of an organization's managed
// Kubernetes cluster. It is embedded in the organization document and only
// ever written by the lifecycle controller; the provider response is the
// source of truth for every field.
type ClusterRecord struct {
	ClusterID      string        `json:"cluster_id,omitempty"`
	ClusterName    string        `json:"cluster_name,omitempty"`
	Status         ClusterStatus `json:"status"`
	Region         string        `json:"region,omitempty"`
	HA             bool          `json:"ha"`
	Endpoint       string        `json:"endpoint,omitempty"`
	NodePools      []NodePool    `json:"node_pools,omitempty"`
	CreatedAt      time.Time     `json:"created_at,omitempty"`
	ProvisionError string        `json:"provision_error,omitempty"`
}

// NodePool is a named, homogeneously-sized group of worker nodes within a
// cluster. It cannot exist independently of its cluster.
type NodePool struct {
	PoolID    string `json:"pool_id"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	Count     int    `json:"count"`
	AutoScale bool   `json:"auto_scale"`
}

// IsRunning returns true if the cluster is in the running state
func (c *ClusterRecord) IsRunning() bool {
	return c.Status == ClusterStatusRunning
}

// IsProvisioned returns true if the cluster has a provider-assigned identity
func (c *ClusterRecord) IsProvisioned() bool {
	return c.ClusterID != ""
}

// Validate checks the record's status invariants
func (c *ClusterRecord) Validate() error {
	if c.Status == ClusterStatusRunning && (c.ClusterID == "" || c.Endpoint == "") {
		return errInvalidRunningRecord
	}
	if c.Status == ClusterStatusError && c.ProvisionError == "" {
		return errInvalidErrorRecord
	}
	return nil
}

// FindNodePool returns the pool with the given ID, or nil
func (c *ClusterRecord) FindNodePool(poolID string) *NodePool {
	for i := range c.NodePools {
		if c.NodePools[i].PoolID == poolID {
			return &c.NodePools[i]
		}
	}
	return nil
}

// NodeCount returns the total node count across all pools
func (c *ClusterRecord) NodeCount() int {
	total := 0
	for _, pool := range c.NodePools {
		total += pool.Count
	}
	return total
}
