package models

import "time"

// CostItemType identifies the kind of billing line item
type CostItemType string

const (
	CostItemNodePool CostItemType = "node_pool"
	CostItemHA       CostItemType = "ha_control_plane"
)

// CostItem is a single line of a cluster's monthly cost breakdown
type CostItem struct {
	Type         CostItemType `json:"type"`
	Name         string       `json:"name"`
	Size         string       `json:"size,omitempty"`
	UnitPrice    float64      `json:"unit_price"`
	Count        int          `json:"count"`
	MonthlyTotal float64      `json:"monthly_total"`
	VCPUs        int          `json:"vcpus,omitempty"`
	MemoryMB     int          `json:"memory_mb,omitempty"`
	DiskGB       int          `json:"disk_gb,omitempty"`
}

// CostBreakdown is the derived monthly cost of one cluster. It is recomputed
// on every request and never persisted.
type CostBreakdown struct {
	Items         []CostItem `json:"items"`
	Subtotal      float64    `json:"subtotal"`
	MarkupPercent float64    `json:"markup_percent"`
	Markup        float64    `json:"markup"`
	MonthlyTotal  float64    `json:"monthly_total"`
	CalculatedAt  time.Time  `json:"calculated_at"`
}

// FleetBilling aggregates cost and capacity across every organization that
// has a provider-backed cluster.
type FleetBilling struct {
	Organizations int     `json:"organizations"`
	Clusters      int     `json:"clusters"`
	Nodes         int     `json:"nodes"`
	VCPUs         int     `json:"vcpus"`
	MemoryMB      int     `json:"memory_mb"`
	MonthlyTotal  float64 `json:"monthly_total"`

	PerOrganization []OrgBilling `json:"per_organization"`
}

// OrgBilling is one organization's share of the fleet billing rollup
type OrgBilling struct {
	OrganizationID uint    `json:"organization_id"`
	Slug           string  `json:"slug"`
	ClusterID      string  `json:"cluster_id"`
	MonthlyTotal   float64 `json:"monthly_total"`
	Nodes          int     `json:"nodes"`
}
