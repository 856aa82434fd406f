// Package billing derives monthly cost breakdowns for provisioned clusters
// and aggregates them across the fleet.
package billing

import (
	"context"
	"time"

	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/models"
	"github.com/dsyorkd/fleet-controller/internal/pricing"
)

// Config carries the tunables applied on top of raw provider pricing
type Config struct {
	MarkupPercent  float64
	HAMonthlyPrice float64
}

// OrganizationLister is the storage capability fleet aggregation depends on
type OrganizationLister interface {
	ListOrganizationsWithClusters() ([]models.Organization, error)
}

// Calculator computes cost breakdowns. Breakdowns are derived values,
// recomputed on every request; only the underlying size pricing is cached.
type Calculator struct {
	prices *pricing.Cache
	cfg    Config
	log    logger.Interface
}

// NewCalculator creates a cost calculator backed by the given pricing cache
func NewCalculator(prices *pricing.Cache, cfg Config, log logger.Interface) *Calculator {
	return &Calculator{
		prices: prices,
		cfg:    cfg,
		log:    log.WithField("component", "billing"),
	}
}

// Calculate derives the monthly cost breakdown for one cluster record.
// A record without a provider-assigned cluster ID, or in the error state,
// yields a zero breakdown with no line items. A pricing lookup failure for
// one pool skips that line item rather than failing the breakdown.
func (c *Calculator) Calculate(ctx context.Context, record *models.ClusterRecord) *models.CostBreakdown {
	breakdown := &models.CostBreakdown{
		Items:         []models.CostItem{},
		MarkupPercent: c.cfg.MarkupPercent,
		CalculatedAt:  time.Now().UTC(),
	}

	if record == nil || !record.IsProvisioned() || record.Status == models.ClusterStatusError {
		return breakdown
	}

	for _, pool := range record.NodePools {
		size, err := c.prices.GetPrice(ctx, pool.Size)
		if err != nil {
			c.log.WithError(err).WithFields(map[string]interface{}{
				"pool": pool.Name,
				"size": pool.Size,
			}).Warn("Skipping pool with unresolvable pricing")
			continue
		}

		breakdown.Items = append(breakdown.Items, models.CostItem{
			Type:         models.CostItemNodePool,
			Name:         pool.Name,
			Size:         pool.Size,
			UnitPrice:    size.PriceMonthly,
			Count:        pool.Count,
			MonthlyTotal: size.PriceMonthly * float64(pool.Count),
			VCPUs:        size.VCPUs * pool.Count,
			MemoryMB:     size.Memory * pool.Count,
			DiskGB:       size.Disk * pool.Count,
		})
	}

	if record.HA {
		breakdown.Items = append(breakdown.Items, models.CostItem{
			Type:         models.CostItemHA,
			Name:         "HA control plane",
			UnitPrice:    c.cfg.HAMonthlyPrice,
			Count:        1,
			MonthlyTotal: c.cfg.HAMonthlyPrice,
		})
	}

	for _, item := range breakdown.Items {
		breakdown.Subtotal += item.MonthlyTotal
	}
	breakdown.Markup = breakdown.Subtotal * c.cfg.MarkupPercent / 100
	breakdown.MonthlyTotal = breakdown.Subtotal + breakdown.Markup

	return breakdown
}

// CalculateFleet aggregates cost and capacity across every organization with
// a cluster record. A failed breakdown for one organization never aborts the
// rollup; that organization simply contributes what could be priced.
func (c *Calculator) CalculateFleet(ctx context.Context, store OrganizationLister) (*models.FleetBilling, error) {
	orgs, err := store.ListOrganizationsWithClusters()
	if err != nil {
		return nil, err
	}

	fleet := &models.FleetBilling{
		PerOrganization: []models.OrgBilling{},
	}

	for _, org := range orgs {
		if org.Doks == nil {
			continue
		}
		breakdown := c.Calculate(ctx, org.Doks)

		fleet.Organizations++
		if org.Doks.IsProvisioned() {
			fleet.Clusters++
		}
		fleet.Nodes += org.Doks.NodeCount()
		for _, item := range breakdown.Items {
			fleet.VCPUs += item.VCPUs
			fleet.MemoryMB += item.MemoryMB
		}
		fleet.MonthlyTotal += breakdown.MonthlyTotal

		fleet.PerOrganization = append(fleet.PerOrganization, models.OrgBilling{
			OrganizationID: org.ID,
			Slug:           org.Slug,
			ClusterID:      org.Doks.ClusterID,
			MonthlyTotal:   breakdown.MonthlyTotal,
			Nodes:          org.Doks.NodeCount(),
		})
	}

	return fleet, nil
}
