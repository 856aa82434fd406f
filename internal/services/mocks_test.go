package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dsyorkd/fleet-controller/internal/models"
	"github.com/dsyorkd/fleet-controller/internal/provider"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetOrganization(id uint) (*models.Organization, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *mockStore) UpdateOrganizationCluster(id uint, record *models.ClusterRecord) error {
	args := m.Called(id, record)
	return args.Error(0)
}

func (m *mockStore) ClearOrganizationCluster(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCluster(ctx context.Context, req *provider.ClusterCreateRequest) (*provider.Cluster, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Cluster), args.Error(1)
}

func (m *mockGateway) GetCluster(ctx context.Context, clusterID string) (*provider.Cluster, error) {
	args := m.Called(ctx, clusterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Cluster), args.Error(1)
}

func (m *mockGateway) GetKubeconfig(ctx context.Context, clusterID string) ([]byte, error) {
	args := m.Called(ctx, clusterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockGateway) DeleteCluster(ctx context.Context, clusterID string) error {
	args := m.Called(ctx, clusterID)
	return args.Error(0)
}

func (m *mockGateway) AddNodePool(ctx context.Context, clusterID string, req *provider.NodePoolCreateRequest) (*provider.NodePool, error) {
	args := m.Called(ctx, clusterID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.NodePool), args.Error(1)
}

func (m *mockGateway) UpdateNodePool(ctx context.Context, clusterID, poolID string, req *provider.NodePoolUpdateRequest) (*provider.NodePool, error) {
	args := m.Called(ctx, clusterID, poolID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.NodePool), args.Error(1)
}

func (m *mockGateway) DeleteNodePool(ctx context.Context, clusterID, poolID string) error {
	args := m.Called(ctx, clusterID, poolID)
	return args.Error(0)
}

func (m *mockGateway) UpgradeHA(ctx context.Context, clusterID string) (*provider.Cluster, error) {
	args := m.Called(ctx, clusterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Cluster), args.Error(1)
}

type mockUsageTracker struct {
	mock.Mock
}

func (m *mockUsageTracker) TrackUsage(ctx context.Context, orgID uint, event string, properties map[string]interface{}) error {
	args := m.Called(ctx, orgID, event, properties)
	return args.Error(0)
}
