package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dsyorkd/fleet-controller/internal/errors"
	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/models"
	"github.com/dsyorkd/fleet-controller/internal/provider"
)

func testDefaults() ClusterDefaults {
	return ClusterDefaults{
		Region:         "fra1",
		NodeSize:       "s-2vcpu-4gb",
		NodeCount:      2,
		ClusterVersion: "latest",
	}
}

func newTestService(store *mockStore, gateway *mockGateway) *ClusterService {
	return NewClusterService(store, gateway, nil, testDefaults(), logger.Default())
}

func orgWithCluster(record *models.ClusterRecord) *models.Organization {
	return &models.Organization{ID: 1, Slug: "acme", Name: "Acme", Doks: record}
}

func runningRecord() *models.ClusterRecord {
	return &models.ClusterRecord{
		ClusterID:   "c-1",
		ClusterName: "acme-k8s",
		Status:      models.ClusterStatusRunning,
		Region:      "fra1",
		Endpoint:    "https://c-1.k8s.example.com",
		NodePools: []models.NodePool{
			{PoolID: "p-1", Name: "default", Size: "s-2vcpu-4gb", Count: 2, AutoScale: true},
		},
	}
}

func providerCluster(state provider.ClusterState) *provider.Cluster {
	return &provider.Cluster{
		ID:       "c-1",
		Name:     "acme-k8s",
		Region:   "fra1",
		Endpoint: "https://c-1.k8s.example.com",
		Status:   provider.ClusterStatus{State: state},
		NodePools: []provider.NodePool{
			{ID: "p-1", Name: "default", Size: "s-2vcpu-4gb", Count: 2, AutoScale: true, MinNodes: 1, MaxNodes: 6},
		},
	}
}

func TestClusterService_Provision(t *testing.T) {
	t.Run("should provision with defaults and persist the provider response", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(nil), nil)
		// Optimistic provisioning write precedes the provider call
		store.On("UpdateOrganizationCluster", uint(1), mock.MatchedBy(func(r *models.ClusterRecord) bool {
			return r.Status == models.ClusterStatusProvisioning && r.ClusterID == ""
		})).Return(nil).Once()
		gateway.On("CreateCluster", mock.Anything, mock.MatchedBy(func(req *provider.ClusterCreateRequest) bool {
			return req.Name == "acme-k8s" &&
				req.Region == "fra1" &&
				len(req.NodePools) == 1 &&
				req.NodePools[0].Count == 2 &&
				req.NodePools[0].MinNodes == 1 &&
				req.NodePools[0].MaxNodes == 6
		})).Return(providerCluster(provider.ClusterStateProvisioning), nil)
		store.On("UpdateOrganizationCluster", uint(1), mock.MatchedBy(func(r *models.ClusterRecord) bool {
			return r.ClusterID == "c-1" && r.Status == models.ClusterStatusProvisioning
		})).Return(nil).Once()

		record, err := svc.Provision(context.Background(), 1, ProvisionRequest{})
		assert.NoError(t, err)
		assert.Equal(t, "c-1", record.ClusterID)
		store.AssertExpectations(t)
		gateway.AssertExpectations(t)
	})

	t.Run("should derive scale ceiling from explicit count", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(nil), nil)
		store.On("UpdateOrganizationCluster", uint(1), mock.Anything).Return(nil)
		gateway.On("CreateCluster", mock.Anything, mock.MatchedBy(func(req *provider.ClusterCreateRequest) bool {
			return req.NodePools[0].Count == 5 &&
				req.NodePools[0].MinNodes == 1 &&
				req.NodePools[0].MaxNodes == 15
		})).Return(providerCluster(provider.ClusterStateProvisioning), nil)

		_, err := svc.Provision(context.Background(), 1, ProvisionRequest{NodeCount: 5})
		assert.NoError(t, err)
		gateway.AssertExpectations(t)
	})

	t.Run("should reject a second provision without calling the provider", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(runningRecord()), nil)

		_, err := svc.Provision(context.Background(), 1, ProvisionRequest{})
		assert.ErrorIs(t, err, ErrClusterExists)
		gateway.AssertNotCalled(t, "CreateCluster", mock.Anything, mock.Anything)
	})

	t.Run("should allow re-provision after a failed attempt", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		errored := &models.ClusterRecord{Status: models.ClusterStatusError, ProvisionError: "quota exceeded"}
		store.On("GetOrganization", uint(1)).Return(orgWithCluster(errored), nil)
		store.On("UpdateOrganizationCluster", uint(1), mock.Anything).Return(nil)
		gateway.On("CreateCluster", mock.Anything, mock.Anything).Return(providerCluster(provider.ClusterStateProvisioning), nil)

		_, err := svc.Provision(context.Background(), 1, ProvisionRequest{})
		assert.NoError(t, err)
	})

	t.Run("should leave an inspectable error state when the provider rejects", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(nil), nil)
		store.On("UpdateOrganizationCluster", uint(1), mock.MatchedBy(func(r *models.ClusterRecord) bool {
			return r.Status == models.ClusterStatusProvisioning
		})).Return(nil).Once()
		gateway.On("CreateCluster", mock.Anything, mock.Anything).
			Return(nil, errors.NewProviderError("create cluster", 422, "region unavailable"))
		store.On("UpdateOrganizationCluster", uint(1), mock.MatchedBy(func(r *models.ClusterRecord) bool {
			return r.Status == models.ClusterStatusError && r.ProvisionError != "" && r.ClusterID == ""
		})).Return(nil).Once()

		_, err := svc.Provision(context.Background(), 1, ProvisionRequest{})
		assert.Error(t, err)
		assert.True(t, errors.IsProviderError(err))
		store.AssertExpectations(t)
	})
}

func TestClusterService_GetStatus(t *testing.T) {
	t.Run("should refresh the record from the provider", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		cached := runningRecord()
		cached.Endpoint = "https://stale.example.com"
		store.On("GetOrganization", uint(1)).Return(orgWithCluster(cached), nil)
		gateway.On("GetCluster", mock.Anything, "c-1").Return(providerCluster(provider.ClusterStateRunning), nil)
		store.On("UpdateOrganizationCluster", uint(1), mock.MatchedBy(func(r *models.ClusterRecord) bool {
			return r.Endpoint == "https://c-1.k8s.example.com"
		})).Return(nil)

		record, err := svc.GetStatus(context.Background(), 1)
		assert.NoError(t, err)
		assert.Equal(t, "https://c-1.k8s.example.com", record.Endpoint)
		assert.NoError(t, record.Validate())
	})

	t.Run("should return cached record while awaiting a cluster id", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		pending := &models.ClusterRecord{Status: models.ClusterStatusProvisioning, Region: "fra1"}
		store.On("GetOrganization", uint(1)).Return(orgWithCluster(pending), nil)

		record, err := svc.GetStatus(context.Background(), 1)
		assert.NoError(t, err)
		assert.Equal(t, models.ClusterStatusProvisioning, record.Status)
		gateway.AssertNotCalled(t, "GetCluster", mock.Anything, mock.Anything)
	})

	t.Run("should clear the record when a deleting cluster is gone upstream", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		deleting := runningRecord()
		deleting.Status = models.ClusterStatusDeleting
		store.On("GetOrganization", uint(1)).Return(orgWithCluster(deleting), nil)
		gateway.On("GetCluster", mock.Anything, "c-1").
			Return(nil, errors.NewProviderError("get cluster", 404, "not found"))
		store.On("ClearOrganizationCluster", uint(1)).Return(nil)

		_, err := svc.GetStatus(context.Background(), 1)
		assert.ErrorIs(t, err, ErrClusterNotFound)
		store.AssertExpectations(t)
	})

	t.Run("should fail when the organization has no cluster", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(nil), nil)

		_, err := svc.GetStatus(context.Background(), 1)
		assert.ErrorIs(t, err, ErrClusterNotFound)
	})
}

func TestClusterService_NodePools(t *testing.T) {
	t.Run("should add a pool and cache the provider response", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(runningRecord()), nil)
		gateway.On("AddNodePool", mock.Anything, "c-1", mock.MatchedBy(func(req *provider.NodePoolCreateRequest) bool {
			return req.Count == 4 && req.MinNodes == 1 && req.MaxNodes == 12
		})).Return(&provider.NodePool{ID: "p-2", Name: "workers", Size: "s-4vcpu-8gb", Count: 4, AutoScale: true}, nil)
		store.On("UpdateOrganizationCluster", uint(1), mock.MatchedBy(func(r *models.ClusterRecord) bool {
			return len(r.NodePools) == 2 && r.NodePools[1].PoolID == "p-2"
		})).Return(nil)

		record, err := svc.AddNodePool(context.Background(), 1, NodePoolRequest{
			Name: "workers", Size: "s-4vcpu-8gb", Count: 4, AutoScale: true,
		})
		assert.NoError(t, err)
		assert.Len(t, record.NodePools, 2)
		store.AssertExpectations(t)
	})

	t.Run("should re-derive scale bounds on resize", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(runningRecord()), nil)
		gateway.On("UpdateNodePool", mock.Anything, "c-1", "p-1", mock.MatchedBy(func(req *provider.NodePoolUpdateRequest) bool {
			return req.Count == 1 && req.MinNodes == 1 && req.MaxNodes == 6
		})).Return(&provider.NodePool{ID: "p-1", Name: "default", Size: "s-2vcpu-4gb", Count: 1, AutoScale: true}, nil)
		store.On("UpdateOrganizationCluster", uint(1), mock.Anything).Return(nil)

		record, err := svc.ScaleNodePool(context.Background(), 1, "p-1", 1, true)
		assert.NoError(t, err)
		assert.Equal(t, 1, record.NodePools[0].Count)
		gateway.AssertExpectations(t)
	})

	t.Run("should reject pool mutations while not running", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		pending := &models.ClusterRecord{Status: models.ClusterStatusProvisioning}
		store.On("GetOrganization", uint(1)).Return(orgWithCluster(pending), nil)

		_, err := svc.AddNodePool(context.Background(), 1, NodePoolRequest{Name: "workers"})
		assert.ErrorIs(t, err, ErrClusterNotReady)
		gateway.AssertNotCalled(t, "AddNodePool", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should fail scaling an unknown pool", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(runningRecord()), nil)

		_, err := svc.ScaleNodePool(context.Background(), 1, "p-missing", 3, false)
		assert.ErrorIs(t, err, ErrPoolNotFound)
	})

	t.Run("should delete a pool and drop it from the cache", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(runningRecord()), nil)
		gateway.On("DeleteNodePool", mock.Anything, "c-1", "p-1").Return(nil)
		store.On("UpdateOrganizationCluster", uint(1), mock.MatchedBy(func(r *models.ClusterRecord) bool {
			return len(r.NodePools) == 0
		})).Return(nil)

		record, err := svc.DeleteNodePool(context.Background(), 1, "p-1")
		assert.NoError(t, err)
		assert.Empty(t, record.NodePools)
	})
}

func TestClusterService_UpgradeHA(t *testing.T) {
	t.Run("should upgrade and set ha only after provider confirms", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		upgraded := providerCluster(provider.ClusterStateRunning)
		upgraded.HA = true
		store.On("GetOrganization", uint(1)).Return(orgWithCluster(runningRecord()), nil)
		gateway.On("UpgradeHA", mock.Anything, "c-1").Return(upgraded, nil)
		store.On("UpdateOrganizationCluster", uint(1), mock.MatchedBy(func(r *models.ClusterRecord) bool {
			return r.HA
		})).Return(nil)

		record, err := svc.UpgradeHA(context.Background(), 1)
		assert.NoError(t, err)
		assert.True(t, record.HA)
	})

	t.Run("should reject upgrading an already-HA cluster", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		ha := runningRecord()
		ha.HA = true
		store.On("GetOrganization", uint(1)).Return(orgWithCluster(ha), nil)

		_, err := svc.UpgradeHA(context.Background(), 1)
		assert.ErrorIs(t, err, ErrHAAlreadyEnabled)
		gateway.AssertNotCalled(t, "UpgradeHA", mock.Anything, mock.Anything)
	})
}

func TestClusterService_DeleteCluster(t *testing.T) {
	t.Run("should reject delete without confirmation before any side effect", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(runningRecord()), nil)

		err := svc.DeleteCluster(context.Background(), 1, false)
		assert.ErrorIs(t, err, ErrConfirmationRequired)
		gateway.AssertNotCalled(t, "DeleteCluster", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "UpdateOrganizationCluster", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "ClearOrganizationCluster", mock.Anything)
	})

	t.Run("should mark deleting, delete upstream, then clear the record", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(runningRecord()), nil)
		store.On("UpdateOrganizationCluster", uint(1), mock.MatchedBy(func(r *models.ClusterRecord) bool {
			return r.Status == models.ClusterStatusDeleting
		})).Return(nil)
		gateway.On("DeleteCluster", mock.Anything, "c-1").Return(nil)
		store.On("ClearOrganizationCluster", uint(1)).Return(nil)

		err := svc.DeleteCluster(context.Background(), 1, true)
		assert.NoError(t, err)
		store.AssertExpectations(t)
		gateway.AssertExpectations(t)
	})

	t.Run("should leave deleting state when the provider delete fails", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		store.On("GetOrganization", uint(1)).Return(orgWithCluster(runningRecord()), nil)
		store.On("UpdateOrganizationCluster", uint(1), mock.Anything).Return(nil)
		gateway.On("DeleteCluster", mock.Anything, "c-1").
			Return(errors.NewProviderError("delete cluster", 500, "internal error"))

		err := svc.DeleteCluster(context.Background(), 1, true)
		assert.Error(t, err)
		store.AssertNotCalled(t, "ClearOrganizationCluster", mock.Anything)
	})

	t.Run("should clear a record that never reached the provider", func(t *testing.T) {
		store := &mockStore{}
		gateway := &mockGateway{}
		svc := newTestService(store, gateway)

		errored := &models.ClusterRecord{Status: models.ClusterStatusError, ProvisionError: "quota exceeded"}
		store.On("GetOrganization", uint(1)).Return(orgWithCluster(errored), nil)
		store.On("ClearOrganizationCluster", uint(1)).Return(nil)

		err := svc.DeleteCluster(context.Background(), 1, true)
		assert.NoError(t, err)
		gateway.AssertNotCalled(t, "DeleteCluster", mock.Anything, mock.Anything)
	})
}

func TestScaleBounds(t *testing.T) {
	t.Run("should floor the ceiling at six nodes", func(t *testing.T) {
		min, max := scaleBounds(1)
		assert.Equal(t, 1, min)
		assert.Equal(t, 6, max)
	})

	t.Run("should scale the ceiling with count", func(t *testing.T) {
		min, max := scaleBounds(4)
		assert.Equal(t, 1, min)
		assert.Equal(t, 12, max)
	})
}
