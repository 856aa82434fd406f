package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsyorkd/fleet-controller/internal/errors"
	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/models"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewForTest(logger.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedOrg(t *testing.T, db *Database, slug string) *models.Organization {
	t.Helper()
	org := &models.Organization{Slug: slug, Name: "Test " + slug, Email: slug + "@example.com"}
	require.NoError(t, db.CreateOrganization(org))
	return org
}

func TestDatabase_Organizations(t *testing.T) {
	t.Run("should create and fetch organizations", func(t *testing.T) {
		db := testDB(t)
		org := seedOrg(t, db, "acme")

		fetched, err := db.GetOrganization(org.ID)
		assert.NoError(t, err)
		assert.Equal(t, "acme", fetched.Slug)
		assert.Nil(t, fetched.Doks)

		bySlug, err := db.GetOrganizationBySlug("acme")
		assert.NoError(t, err)
		assert.Equal(t, org.ID, bySlug.ID)
	})

	t.Run("should return ErrNotFound for a missing organization", func(t *testing.T) {
		db := testDB(t)

		_, err := db.GetOrganization(9999)
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestDatabase_ClusterRecords(t *testing.T) {
	record := &models.ClusterRecord{
		ClusterID: "c-1",
		Status:    models.ClusterStatusRunning,
		Region:    "fra1",
		Endpoint:  "https://c-1.k8s.example.com",
		NodePools: []models.NodePool{
			{PoolID: "p-1", Name: "default", Size: "s-2vcpu-4gb", Count: 2},
		},
	}

	t.Run("should round-trip the embedded cluster record", func(t *testing.T) {
		db := testDB(t)
		org := seedOrg(t, db, "acme")

		assert.NoError(t, db.UpdateOrganizationCluster(org.ID, record))

		fetched, err := db.GetOrganization(org.ID)
		assert.NoError(t, err)
		require.NotNil(t, fetched.Doks)
		assert.Equal(t, "c-1", fetched.Doks.ClusterID)
		assert.Len(t, fetched.Doks.NodePools, 1)
		assert.Equal(t, "p-1", fetched.Doks.NodePools[0].PoolID)
	})

	t.Run("should fail updating a missing organization", func(t *testing.T) {
		db := testDB(t)

		err := db.UpdateOrganizationCluster(9999, record)
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("should list only organizations with clusters", func(t *testing.T) {
		db := testDB(t)
		withCluster := seedOrg(t, db, "acme")
		seedOrg(t, db, "globex")

		require.NoError(t, db.UpdateOrganizationCluster(withCluster.ID, record))

		orgs, err := db.ListOrganizationsWithClusters()
		assert.NoError(t, err)
		require.Len(t, orgs, 1)
		assert.Equal(t, "acme", orgs[0].Slug)
	})

	t.Run("should clear the cluster record", func(t *testing.T) {
		db := testDB(t)
		org := seedOrg(t, db, "acme")
		require.NoError(t, db.UpdateOrganizationCluster(org.ID, record))

		assert.NoError(t, db.ClearOrganizationCluster(org.ID))

		fetched, err := db.GetOrganization(org.ID)
		assert.NoError(t, err)
		assert.Nil(t, fetched.Doks)
	})
}
