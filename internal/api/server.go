// Package api wires the HTTP surface of the fleet controller: cluster
// lifecycle, billing and watcher control, behind the shared middleware
// chain.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dsyorkd/fleet-controller/internal/api/handlers"
	"github.com/dsyorkd/fleet-controller/internal/api/middleware"
	"github.com/dsyorkd/fleet-controller/internal/billing"
	"github.com/dsyorkd/fleet-controller/internal/config"
	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/services"
	"github.com/dsyorkd/fleet-controller/internal/storage"
	"github.com/dsyorkd/fleet-controller/internal/watcher"
)

// Deps are the wired components the server exposes
type Deps struct {
	Database   *storage.Database
	Clusters   *services.ClusterService
	Calculator *billing.Calculator
	Watcher    *watcher.Watcher
}

// Server represents the REST API server
type Server struct {
	config *config.APIConfig
	log    logger.Interface
	deps   Deps
	router *gin.Engine
	server *http.Server
}

// New creates a new API server instance
func New(cfg *config.APIConfig, log logger.Interface, deps Deps, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: cfg,
		log:    log,
		deps:   deps,
		router: gin.New(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes and middleware
func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger(s.log))
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.RequestID())

	if s.config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
			RequestsPerSec:  s.config.RateLimitPerSec,
			Burst:           s.config.RateLimitBurst,
			CleanupInterval: 5 * time.Minute,
			WhitelistedIPs:  []string{"127.0.0.1", "::1"},
		}, s.log)
		s.router.Use(limiter.RateLimit())
	}

	// Health check endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(s.deps.Database, s.deps.Watcher)
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/ready", healthHandler.Ready)

	v1 := s.router.Group("/api/v1")
	{
		if s.config.AuthEnabled {
			v1.Use(middleware.Auth(s.config.AuthSecret))
		}

		// Cluster lifecycle
		clusterHandler := handlers.NewClusterHandler(s.deps.Clusters, s.log)
		cluster := v1.Group("/orgs/:id/cluster")
		{
			cluster.POST("", clusterHandler.Provision)
			cluster.GET("", clusterHandler.Status)
			cluster.DELETE("", clusterHandler.Delete)
			cluster.GET("/kubeconfig", clusterHandler.Kubeconfig)
			cluster.POST("/ha", clusterHandler.UpgradeHA)
			cluster.POST("/node-pools", clusterHandler.AddNodePool)
			cluster.PUT("/node-pools/:poolId", clusterHandler.ScaleNodePool)
			cluster.DELETE("/node-pools/:poolId", clusterHandler.DeleteNodePool)
		}

		// Billing
		billingHandler := handlers.NewBillingHandler(s.deps.Calculator, s.deps.Database, s.log)
		v1.GET("/orgs/:id/billing", billingHandler.OrgBilling)
		v1.GET("/billing/fleet", billingHandler.FleetBilling)

		// Build event watcher control
		if s.deps.Watcher != nil {
			watcherHandler := handlers.NewWatcherHandler(s.deps.Watcher, s.log)
			w := v1.Group("/watcher")
			{
				w.POST("/start", watcherHandler.Start)
				w.POST("/stop", watcherHandler.Stop)
				w.GET("/status", watcherHandler.Status)
			}
		}

		// System information
		v1.GET("/system/info", handlers.SystemInfo)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.config.GetAddress(),
		Handler:      s.router,
		ReadTimeout:  s.config.GetReadTimeout(),
		WriteTimeout: s.config.GetWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	s.log.WithField("address", s.config.GetAddress()).Info("Starting API server")

	if s.config.IsTLSEnabled() {
		return s.server.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}

// Router returns the underlying Gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
