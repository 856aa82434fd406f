// Package services implements the fleet lifecycle controller: the state
// machine that drives each organization's managed cluster through
// provisioning, scaling, HA upgrade and deletion against the provider API.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dsyorkd/fleet-controller/internal/errors"
	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/models"
	"github.com/dsyorkd/fleet-controller/internal/provider"
)

// ClusterStore is the organization persistence the controller depends on
type ClusterStore interface {
	GetOrganization(id uint) (*models.Organization, error)
	UpdateOrganizationCluster(id uint, record *models.ClusterRecord) error
	ClearOrganizationCluster(id uint) error
}

// ClusterGateway is the provider capability surface the controller uses
type ClusterGateway interface {
	CreateCluster(ctx context.Context, req *provider.ClusterCreateRequest) (*provider.Cluster, error)
	GetCluster(ctx context.Context, clusterID string) (*provider.Cluster, error)
	GetKubeconfig(ctx context.Context, clusterID string) ([]byte, error)
	DeleteCluster(ctx context.Context, clusterID string) error
	AddNodePool(ctx context.Context, clusterID string, req *provider.NodePoolCreateRequest) (*provider.NodePool, error)
	UpdateNodePool(ctx context.Context, clusterID, poolID string, req *provider.NodePoolUpdateRequest) (*provider.NodePool, error)
	DeleteNodePool(ctx context.Context, clusterID, poolID string) error
	UpgradeHA(ctx context.Context, clusterID string) (*provider.Cluster, error)
}

// UsageTracker posts optional usage analytics. Failures are logged and
// discarded; usage tracking never affects a lifecycle operation.
type UsageTracker interface {
	TrackUsage(ctx context.Context, orgID uint, event string, properties map[string]interface{}) error
}

// ClusterDefaults fill in provision parameters the caller omitted
type ClusterDefaults struct {
	Region         string
	NodeSize       string
	NodeCount      int
	ClusterVersion string
}

// ClusterService owns the per-organization cluster state machine. There is
// no in-process lock; conflicting concurrent requests for one organization
// are guarded only by a read-then-act status check against the store.
type ClusterService struct {
	store    ClusterStore
	gateway  ClusterGateway
	usage    UsageTracker
	defaults ClusterDefaults
	log      logger.Interface
}

// NewClusterService creates the lifecycle controller. usage may be nil.
func NewClusterService(store ClusterStore, gateway ClusterGateway, usage UsageTracker, defaults ClusterDefaults, log logger.Interface) *ClusterService {
	return &ClusterService{
		store:    store,
		gateway:  gateway,
		usage:    usage,
		defaults: defaults,
		log:      log.WithField("component", "cluster-service"),
	}
}

// ProvisionRequest carries the caller's provision parameters. Zero values
// fall back to the configured defaults.
type ProvisionRequest struct {
	Region    string
	NodeSize  string
	NodeCount int
	HA        bool
}

// scaleBounds derives a pool's auto-scale window from its explicit count.
// The ceiling always reflects the most recent count, on create and resize.
func scaleBounds(count int) (minNodes, maxNodes int) {
	minNodes = 1
	maxNodes = count * 3
	if maxNodes < 6 {
		maxNodes = 6
	}
	return minNodes, maxNodes
}

// recordFromCluster projects a provider response onto the cached record.
// The provider response is the source of truth for every field; the cache
// is only a read-through projection of it.
func recordFromCluster(cluster *provider.Cluster) *models.ClusterRecord {
	record := &models.ClusterRecord{
		ClusterID:   cluster.ID,
		ClusterName: cluster.Name,
		Region:      cluster.Region,
		HA:          cluster.HA,
		Endpoint:    cluster.Endpoint,
		CreatedAt:   cluster.CreatedAt,
		NodePools:   make([]models.NodePool, 0, len(cluster.NodePools)),
	}

	switch cluster.Status.State {
	case provider.ClusterStateRunning, provider.ClusterStateDegraded:
		record.Status = models.ClusterStatusRunning
	case provider.ClusterStateDeleting:
		record.Status = models.ClusterStatusDeleting
	case provider.ClusterStateError:
		record.Status = models.ClusterStatusError
		record.ProvisionError = cluster.Status.Message
		if record.ProvisionError == "" {
			record.ProvisionError = "provider reported an error state"
		}
	default:
		record.Status = models.ClusterStatusProvisioning
	}

	for _, pool := range cluster.NodePools {
		record.NodePools = append(record.NodePools, poolFromProvider(&pool))
	}
	return record
}

func poolFromProvider(pool *provider.NodePool) models.NodePool {
	return models.NodePool{
		PoolID:    pool.ID,
		Name:      pool.Name,
		Size:      pool.Size,
		Count:     pool.Count,
		AutoScale: pool.AutoScale,
	}
}

// Provision creates a managed cluster for the organization. A non-error
// cluster record already present refuses the request without touching the
// provider. The provisioning record is written before the provider call so
// the organization is never left in `none` after an accepted request.
func (s *ClusterService) Provision(ctx context.Context, orgID uint, req ProvisionRequest) (*models.ClusterRecord, error) {
	org, err := s.store.GetOrganization(orgID)
	if err != nil {
		return nil, err
	}
	if org.Doks != nil && org.Doks.Status != models.ClusterStatusError {
		return nil, ErrClusterExists
	}

	if req.Region == "" {
		req.Region = s.defaults.Region
	}
	if req.NodeSize == "" {
		req.NodeSize = s.defaults.NodeSize
	}
	if req.NodeCount <= 0 {
		req.NodeCount = s.defaults.NodeCount
	}

	pending := &models.ClusterRecord{
		Status:    models.ClusterStatusProvisioning,
		Region:    req.Region,
		HA:        req.HA,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.UpdateOrganizationCluster(orgID, pending); err != nil {
		return nil, err
	}

	minNodes, maxNodes := scaleBounds(req.NodeCount)
	cluster, err := s.gateway.CreateCluster(ctx, &provider.ClusterCreateRequest{
		Name:    fmt.Sprintf("%s-k8s", org.Slug),
		Region:  req.Region,
		Version: s.defaults.ClusterVersion,
		HA:      req.HA,
		NodePools: []provider.NodePoolCreateRequest{
			{
				Name:      "default",
				Size:      req.NodeSize,
				Count:     req.NodeCount,
				AutoScale: true,
				MinNodes:  minNodes,
				MaxNodes:  maxNodes,
			},
		},
	})
	if err != nil {
		pending.Status = models.ClusterStatusError
		pending.ProvisionError = err.Error()
		if persistErr := s.store.UpdateOrganizationCluster(orgID, pending); persistErr != nil {
			s.log.WithError(persistErr).WithField("org_id", orgID).Error("Failed to persist provisioning failure")
		}
		return nil, err
	}

	record := recordFromCluster(cluster)
	if err := s.store.UpdateOrganizationCluster(orgID, record); err != nil {
		return nil, err
	}

	s.trackUsage(ctx, orgID, "cluster_provisioned", map[string]interface{}{
		"region":     req.Region,
		"node_size":  req.NodeSize,
		"node_count": req.NodeCount,
		"ha":         req.HA,
	})

	s.log.WithFields(map[string]interface{}{
		"org_id":     orgID,
		"cluster_id": record.ClusterID,
		"region":     record.Region,
	}).Info("Cluster provisioning accepted")

	return record, nil
}

// GetStatus returns the organization's cluster record, refreshed from the
// provider when the cluster has a provider-assigned identity. A 404 from
// the provider while the record is in `deleting` confirms the deletion and
// clears the record.
func (s *ClusterService) GetStatus(ctx context.Context, orgID uint) (*models.ClusterRecord, error) {
	org, err := s.store.GetOrganization(orgID)
	if err != nil {
		return nil, err
	}
	if org.Doks == nil {
		return nil, ErrClusterNotFound
	}
	record := org.Doks
	if record.ClusterID == "" {
		return record, nil
	}

	cluster, err := s.gateway.GetCluster(ctx, record.ClusterID)
	if err != nil {
		var pe *errors.ProviderError
		if errors.As(err, &pe) && pe.StatusCode == 404 && record.Status == models.ClusterStatusDeleting {
			if clearErr := s.store.ClearOrganizationCluster(orgID); clearErr != nil {
				return nil, clearErr
			}
			return nil, ErrClusterNotFound
		}
		return nil, err
	}

	refreshed := recordFromCluster(cluster)
	if err := s.store.UpdateOrganizationCluster(orgID, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// GetKubeconfig returns the provider's credential blob for the cluster
func (s *ClusterService) GetKubeconfig(ctx context.Context, orgID uint) ([]byte, error) {
	record, err := s.requireCluster(orgID)
	if err != nil {
		return nil, err
	}
	if record.ClusterID == "" {
		return nil, ErrClusterNotReady
	}
	return s.gateway.GetKubeconfig(ctx, record.ClusterID)
}

// NodePoolRequest carries node pool create/resize parameters
type NodePoolRequest struct {
	Name      string
	Size      string
	Count     int
	AutoScale bool
}

// AddNodePool adds a worker pool to a running cluster
func (s *ClusterService) AddNodePool(ctx context.Context, orgID uint, req NodePoolRequest) (*models.ClusterRecord, error) {
	record, err := s.requireRunning(orgID)
	if err != nil {
		return nil, err
	}
	if req.Size == "" {
		req.Size = s.defaults.NodeSize
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	minNodes, maxNodes := scaleBounds(req.Count)
	pool, err := s.gateway.AddNodePool(ctx, record.ClusterID, &provider.NodePoolCreateRequest{
		Name:      req.Name,
		Size:      req.Size,
		Count:     req.Count,
		AutoScale: req.AutoScale,
		MinNodes:  minNodes,
		MaxNodes:  maxNodes,
	})
	if err != nil {
		return nil, err
	}

	record.NodePools = append(record.NodePools, poolFromProvider(pool))
	if err := s.store.UpdateOrganizationCluster(orgID, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ScaleNodePool resizes an existing pool. The auto-scale ceiling is
// re-derived from the new count.
func (s *ClusterService) ScaleNodePool(ctx context.Context, orgID uint, poolID string, count int, autoScale bool) (*models.ClusterRecord, error) {
	record, err := s.requireRunning(orgID)
	if err != nil {
		return nil, err
	}
	existing := record.FindNodePool(poolID)
	if existing == nil {
		return nil, ErrPoolNotFound
	}

	minNodes, maxNodes := scaleBounds(count)
	pool, err := s.gateway.UpdateNodePool(ctx, record.ClusterID, poolID, &provider.NodePoolUpdateRequest{
		Name:      existing.Name,
		Count:     count,
		AutoScale: autoScale,
		MinNodes:  minNodes,
		MaxNodes:  maxNodes,
	})
	if err != nil {
		return nil, err
	}

	*existing = poolFromProvider(pool)
	if err := s.store.UpdateOrganizationCluster(orgID, record); err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteNodePool removes a pool from a running cluster
func (s *ClusterService) DeleteNodePool(ctx context.Context, orgID uint, poolID string) (*models.ClusterRecord, error) {
	record, err := s.requireRunning(orgID)
	if err != nil {
		return nil, err
	}
	if record.FindNodePool(poolID) == nil {
		return nil, ErrPoolNotFound
	}

	if err := s.gateway.DeleteNodePool(ctx, record.ClusterID, poolID); err != nil {
		return nil, err
	}

	pools := record.NodePools[:0]
	for _, pool := range record.NodePools {
		if pool.PoolID != poolID {
			pools = append(pools, pool)
		}
	}
	record.NodePools = pools
	if err := s.store.UpdateOrganizationCluster(orgID, record); err != nil {
		return nil, err
	}
	return record, nil
}

// UpgradeHA upgrades the cluster to a highly available control plane. The
// cached `ha` flag is set only after the provider confirms.
func (s *ClusterService) UpgradeHA(ctx context.Context, orgID uint) (*models.ClusterRecord, error) {
	record, err := s.requireRunning(orgID)
	if err != nil {
		return nil, err
	}
	if record.HA {
		return nil, ErrHAAlreadyEnabled
	}

	cluster, err := s.gateway.UpgradeHA(ctx, record.ClusterID)
	if err != nil {
		return nil, err
	}

	refreshed := recordFromCluster(cluster)
	if err := s.store.UpdateOrganizationCluster(orgID, refreshed); err != nil {
		return nil, err
	}

	s.trackUsage(ctx, orgID, "cluster_ha_upgraded", nil)
	return refreshed, nil
}

// DeleteCluster tears down the organization's cluster. Without confirm the
// request is rejected before any provider call or state change. On a failed
// provider delete the record stays in `deleting` as a manual-retry marker;
// a repeated confirmed delete retries from there.
func (s *ClusterService) DeleteCluster(ctx context.Context, orgID uint, confirm bool) error {
	record, err := s.requireCluster(orgID)
	if err != nil {
		return err
	}
	if !confirm {
		return ErrConfirmationRequired
	}

	// A record that never got a provider identity has nothing to tear down
	if record.ClusterID == "" {
		return s.store.ClearOrganizationCluster(orgID)
	}

	record.Status = models.ClusterStatusDeleting
	if err := s.store.UpdateOrganizationCluster(orgID, record); err != nil {
		return err
	}

	if err := s.gateway.DeleteCluster(ctx, record.ClusterID); err != nil {
		s.log.WithError(err).WithFields(map[string]interface{}{
			"org_id":     orgID,
			"cluster_id": record.ClusterID,
		}).Error("Provider delete failed, cluster left in deleting state")
		return err
	}

	if err := s.store.ClearOrganizationCluster(orgID); err != nil {
		return err
	}

	s.trackUsage(ctx, orgID, "cluster_deleted", map[string]interface{}{
		"cluster_id": record.ClusterID,
	})

	s.log.WithFields(map[string]interface{}{
		"org_id":     orgID,
		"cluster_id": record.ClusterID,
	}).Info("Cluster deleted")
	return nil
}

// requireCluster loads the organization's cluster record or fails
func (s *ClusterService) requireCluster(orgID uint) (*models.ClusterRecord, error) {
	org, err := s.store.GetOrganization(orgID)
	if err != nil {
		return nil, err
	}
	if org.Doks == nil {
		return nil, ErrClusterNotFound
	}
	return org.Doks, nil
}

// requireRunning loads the cluster record and rejects mutations while the
// cluster is not running
func (s *ClusterService) requireRunning(orgID uint) (*models.ClusterRecord, error) {
	record, err := s.requireCluster(orgID)
	if err != nil {
		return nil, err
	}
	if !record.IsRunning() {
		return nil, ErrClusterNotReady
	}
	return record, nil
}

func (s *ClusterService) trackUsage(ctx context.Context, orgID uint, event string, properties map[string]interface{}) {
	if s.usage == nil {
		return
	}
	if err := s.usage.TrackUsage(ctx, orgID, event, properties); err != nil {
		s.log.WithError(err).WithField("event", event).Warn("Usage tracking failed")
	}
}
