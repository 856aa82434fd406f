package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsyorkd/fleet-controller/internal/errors"
	"github.com/dsyorkd/fleet-controller/internal/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL, Token: "test-token"}, logger.Default())
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	t.Run("should fail without a credential", func(t *testing.T) {
		_, err := New(Config{BaseURL: "https://api.example.com"}, logger.Default())
		require.Error(t, err)

		var configErr *errors.ConfigError
		assert.ErrorAs(t, err, &configErr)
	})
}

func TestClient_CreateCluster(t *testing.T) {
	t.Run("should send credentials and decode the cluster envelope", func(t *testing.T) {
		var gotAuth string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			assert.Equal(t, "/kubernetes/clusters", r.URL.Path)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"kubernetes_cluster": map[string]interface{}{
					"id":     "c-1",
					"name":   "acme-k8s",
					"region": "fra1",
					"status": map[string]string{"state": "provisioning"},
				},
			})
		})

		cluster, err := client.CreateCluster(context.Background(), &ClusterCreateRequest{
			Name:   "acme-k8s",
			Region: "fra1",
		})
		assert.NoError(t, err)
		assert.Equal(t, "Bearer test-token", gotAuth)
		assert.Equal(t, "c-1", cluster.ID)
		assert.Equal(t, ClusterStateProvisioning, cluster.Status.State)
	})

	t.Run("should normalize API errors with upstream detail", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"id":      "unprocessable_entity",
				"message": "region is not available",
			})
		})

		_, err := client.CreateCluster(context.Background(), &ClusterCreateRequest{Name: "x"})
		require.Error(t, err)

		var providerErr *errors.ProviderError
		require.ErrorAs(t, err, &providerErr)
		assert.Equal(t, 422, providerErr.StatusCode)
		assert.Equal(t, "region is not available", providerErr.Message)
	})

	t.Run("should surface transport failures as provider errors", func(t *testing.T) {
		client, err := New(Config{BaseURL: "http://127.0.0.1:1", Token: "test-token"}, logger.Default())
		require.NoError(t, err)

		_, err = client.GetCluster(context.Background(), "c-1")
		require.Error(t, err)
		assert.True(t, errors.IsProviderError(err))
	})
}

func TestClient_ListSizes(t *testing.T) {
	t.Run("should decode the sizes envelope", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/sizes", r.URL.Path)
			assert.Equal(t, "200", r.URL.Query().Get("per_page"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"sizes": []map[string]interface{}{
					{"slug": "s-2vcpu-4gb", "vcpus": 2, "memory": 4096, "price_monthly": 24.0},
				},
			})
		})

		sizes, err := client.ListSizes(context.Background())
		assert.NoError(t, err)
		require.Len(t, sizes, 1)
		assert.Equal(t, "s-2vcpu-4gb", sizes[0].Slug)
		assert.Equal(t, float64(24), sizes[0].PriceMonthly)
	})
}

func TestClient_GetKubeconfig(t *testing.T) {
	t.Run("should return the raw credential blob", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/kubernetes/clusters/c-1/kubeconfig", r.URL.Path)
			_, _ = w.Write([]byte("apiVersion: v1\nkind: Config\n"))
		})

		blob, err := client.GetKubeconfig(context.Background(), "c-1")
		assert.NoError(t, err)
		assert.Contains(t, string(blob), "kind: Config")
	})
}
