package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/services"
)

// ClusterHandler exposes the cluster lifecycle operations over HTTP
type ClusterHandler struct {
	clusters *services.ClusterService
	log      logger.Interface
}

// NewClusterHandler creates a new cluster handler
func NewClusterHandler(clusters *services.ClusterService, log logger.Interface) *ClusterHandler {
	return &ClusterHandler{
		clusters: clusters,
		log:      log.WithField("handler", "cluster"),
	}
}

type provisionRequest struct {
	Region    string `json:"region"`
	NodeSize  string `json:"node_size"`
	NodeCount int    `json:"node_count"`
	HA        bool   `json:"ha"`
}

type nodePoolCreateRequest struct {
	Name      string `json:"name" binding:"required"`
	Size      string `json:"size"`
	Count     int    `json:"count"`
	AutoScale bool   `json:"auto_scale"`
}

type nodePoolScaleRequest struct {
	Count     int  `json:"count" binding:"required,min=1"`
	AutoScale bool `json:"auto_scale"`
}

func orgID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad Request", "message": "invalid organization id"})
		return 0, false
	}
	return uint(id), true
}

// Provision accepts a cluster provision request for the organization
func (h *ClusterHandler) Provision(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}

	var req provisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Bad Request", "message": err.Error()})
			return
		}
	}

	record, err := h.clusters.Provision(c.Request.Context(), id, services.ProvisionRequest{
		Region:    req.Region,
		NodeSize:  req.NodeSize,
		NodeCount: req.NodeCount,
		HA:        req.HA,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, record)
}

// Status returns the cluster record, refreshed from the provider
func (h *ClusterHandler) Status(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}

	record, err := h.clusters.GetStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Kubeconfig streams the provider's credential blob
func (h *ClusterHandler) Kubeconfig(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}

	kubeconfig, err := h.clusters.GetKubeconfig(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/yaml", kubeconfig)
}

// AddNodePool adds a worker pool to the cluster
func (h *ClusterHandler) AddNodePool(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}

	var req nodePoolCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad Request", "message": err.Error()})
		return
	}

	record, err := h.clusters.AddNodePool(c.Request.Context(), id, services.NodePoolRequest{
		Name:      req.Name,
		Size:      req.Size,
		Count:     req.Count,
		AutoScale: req.AutoScale,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// ScaleNodePool resizes an existing pool
func (h *ClusterHandler) ScaleNodePool(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}

	var req nodePoolScaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad Request", "message": err.Error()})
		return
	}

	record, err := h.clusters.ScaleNodePool(c.Request.Context(), id, c.Param("poolId"), req.Count, req.AutoScale)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeleteNodePool removes a pool from the cluster
func (h *ClusterHandler) DeleteNodePool(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}

	record, err := h.clusters.DeleteNodePool(c.Request.Context(), id, c.Param("poolId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// UpgradeHA upgrades the cluster to a highly available control plane
func (h *ClusterHandler) UpgradeHA(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}

	record, err := h.clusters.UpgradeHA(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Delete tears down the cluster; requires confirm=true
func (h *ClusterHandler) Delete(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}

	confirm := c.Query("confirm") == "true"
	if err := h.clusters.DeleteCluster(c.Request.Context(), id, confirm); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
