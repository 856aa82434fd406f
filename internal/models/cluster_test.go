package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClusterRecord_Validate(t *testing.T) {
	t.Run("should require cluster id and endpoint when running", func(t *testing.T) {
		record := &ClusterRecord{Status: ClusterStatusRunning, ClusterID: "c-1"}
		assert.Error(t, record.Validate())

		record.Endpoint = "https://c-1.k8s.example.com"
		assert.NoError(t, record.Validate())
	})

	t.Run("should require a provision error when errored", func(t *testing.T) {
		record := &ClusterRecord{Status: ClusterStatusError}
		assert.Error(t, record.Validate())

		record.ProvisionError = "quota exceeded"
		assert.NoError(t, record.Validate())
	})

	t.Run("should allow a stale cluster id on an errored record", func(t *testing.T) {
		record := &ClusterRecord{
			Status:         ClusterStatusError,
			ClusterID:      "c-1",
			ProvisionError: "provisioning failed midway",
		}
		assert.NoError(t, record.Validate())
	})

	t.Run("should accept provisioning without identity", func(t *testing.T) {
		record := &ClusterRecord{Status: ClusterStatusProvisioning}
		assert.NoError(t, record.Validate())
	})
}

func TestClusterRecord_Pools(t *testing.T) {
	record := &ClusterRecord{
		NodePools: []NodePool{
			{PoolID: "p-1", Name: "default", Count: 2},
			{PoolID: "p-2", Name: "workers", Count: 3},
		},
	}

	t.Run("should find pools by id", func(t *testing.T) {
		pool := record.FindNodePool("p-2")
		assert.NotNil(t, pool)
		assert.Equal(t, "workers", pool.Name)
		assert.Nil(t, record.FindNodePool("p-3"))
	})

	t.Run("should sum node counts across pools", func(t *testing.T) {
		assert.Equal(t, 5, record.NodeCount())
	})
}
