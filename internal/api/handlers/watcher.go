package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/watcher"
)

// WatcherHandler controls the build event watcher
type WatcherHandler struct {
	watcher *watcher.Watcher
	log     logger.Interface
}

// NewWatcherHandler creates a new watcher handler
func NewWatcherHandler(w *watcher.Watcher, log logger.Interface) *WatcherHandler {
	return &WatcherHandler{
		watcher: w,
		log:     log.WithField("handler", "watcher"),
	}
}

// Start activates the event subscription; starting twice is a no-op
func (h *WatcherHandler) Start(c *gin.Context) {
	h.watcher.Start()
	c.JSON(http.StatusOK, gin.H{"running": h.watcher.Running()})
}

// Stop cancels the event subscription; stopping twice is a no-op
func (h *WatcherHandler) Stop(c *gin.Context) {
	h.watcher.Stop()
	c.JSON(http.StatusOK, gin.H{"running": h.watcher.Running()})
}

// Status reports whether the subscription loop is active
func (h *WatcherHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"running": h.watcher.Running()})
}
