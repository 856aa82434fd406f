package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dsyorkd/fleet-controller/internal/billing"
	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/services"
	"github.com/dsyorkd/fleet-controller/internal/storage"
)

// BillingHandler exposes cost breakdowns over HTTP
type BillingHandler struct {
	calculator *billing.Calculator
	database   *storage.Database
	log        logger.Interface
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(calculator *billing.Calculator, database *storage.Database, log logger.Interface) *BillingHandler {
	return &BillingHandler{
		calculator: calculator,
		database:   database,
		log:        log.WithField("handler", "billing"),
	}
}

// OrgBilling returns the organization's monthly cost breakdown
func (h *BillingHandler) OrgBilling(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}

	org, err := h.database.GetOrganization(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if org.Doks == nil {
		respondError(c, services.ErrClusterNotFound)
		return
	}

	breakdown := h.calculator.Calculate(c.Request.Context(), org.Doks)
	c.JSON(http.StatusOK, breakdown)
}

// FleetBilling returns the cost and capacity rollup across the fleet
func (h *BillingHandler) FleetBilling(c *gin.Context) {
	fleet, err := h.calculator.CalculateFleet(c.Request.Context(), h.database)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fleet)
}
