package provider

import "time"

// ClusterState is the provider's reported lifecycle state for a cluster
type ClusterState string

const (
	ClusterStateProvisioning ClusterState = "provisioning"
	ClusterStateRunning      ClusterState = "running"
	ClusterStateDegraded     ClusterState = "degraded"
	ClusterStateError        ClusterState = "error"
	ClusterStateDeleting     ClusterState = "deleting"
)

// Cluster is the provider's representation of a managed Kubernetes cluster
type Cluster struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Region    string        `json:"region"`
	Version   string        `json:"version"`
	Endpoint  string        `json:"endpoint"`
	HA        bool          `json:"ha"`
	Status    ClusterStatus `json:"status"`
	NodePools []NodePool    `json:"node_pools"`
	CreatedAt time.Time     `json:"created_at"`
}

// ClusterStatus carries the provider's state plus a human-readable message
type ClusterStatus struct {
	State   ClusterState `json:"state"`
	Message string       `json:"message,omitempty"`
}

// NodePool is the provider's representation of a cluster node pool
type NodePool struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	Count     int    `json:"count"`
	AutoScale bool   `json:"auto_scale"`
	MinNodes  int    `json:"min_nodes"`
	MaxNodes  int    `json:"max_nodes"`
}

// Size describes an instance size including its pricing
type Size struct {
	Slug         string  `json:"slug"`
	Memory       int     `json:"memory"`
	VCPUs        int     `json:"vcpus"`
	Disk         int     `json:"disk"`
	PriceMonthly float64 `json:"price_monthly"`
	PriceHourly  float64 `json:"price_hourly"`
	Available    bool    `json:"available"`
}

// Region describes a provider region
type Region struct {
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// ClusterCreateRequest is the payload for creating a cluster
type ClusterCreateRequest struct {
	Name      string                  `json:"name"`
	Region    string                  `json:"region"`
	Version   string                  `json:"version"`
	HA        bool                    `json:"ha"`
	NodePools []NodePoolCreateRequest `json:"node_pools"`
}

// NodePoolCreateRequest is the payload for adding a node pool
type NodePoolCreateRequest struct {
	Name      string `json:"name"`
	Size      string `json:"size"`
	Count     int    `json:"count"`
	AutoScale bool   `json:"auto_scale"`
	MinNodes  int    `json:"min_nodes,omitempty"`
	MaxNodes  int    `json:"max_nodes,omitempty"`
}

// NodePoolUpdateRequest is the payload for resizing a node pool
type NodePoolUpdateRequest struct {
	Name      string `json:"name,omitempty"`
	Count     int    `json:"count"`
	AutoScale bool   `json:"auto_scale"`
	MinNodes  int    `json:"min_nodes,omitempty"`
	MaxNodes  int    `json:"max_nodes,omitempty"`
}

// clusterRoot wraps single-cluster API responses
type clusterRoot struct {
	KubernetesCluster *Cluster `json:"kubernetes_cluster"`
}

// nodePoolRoot wraps single-node-pool API responses
type nodePoolRoot struct {
	NodePool *NodePool `json:"node_pool"`
}

// sizesRoot wraps size listing responses
type sizesRoot struct {
	Sizes []Size `json:"sizes"`
}

// regionsRoot wraps region listing responses
type regionsRoot struct {
	Regions []Region `json:"regions"`
}

// apiError is the provider's error response body
type apiError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
