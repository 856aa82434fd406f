package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/dsyorkd/fleet-controller/internal/errors"
	"github.com/dsyorkd/fleet-controller/internal/services"
)

// respondError maps typed service errors to HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case apperrors.Is(err, services.ErrClusterNotFound), apperrors.Is(err, apperrors.ErrNotFound), apperrors.Is(err, services.ErrPoolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found", "message": err.Error()})
	case apperrors.Is(err, services.ErrClusterExists), apperrors.Is(err, services.ErrClusterNotReady), apperrors.Is(err, services.ErrHAAlreadyEnabled):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict", "message": err.Error()})
	case apperrors.Is(err, services.ErrConfirmationRequired):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "Precondition Failed", "message": err.Error()})
	case apperrors.IsProviderError(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Provider Error", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error", "message": err.Error()})
	}
}
