// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package api serves the deployer REST surface.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/config"
	"github.com/AMD-AGI/Primus-Deploy/pkg/health"
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
	"github.com/AMD-AGI/Primus-Deploy/pkg/integration"
	"github.com/AMD-AGI/Primus-Deploy/pkg/notification"
	"github.com/AMD-AGI/Primus-Deploy/pkg/queue"
	"github.com/AMD-AGI/Primus-Deploy/pkg/worker"
	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the API worker: it carries every dependency the handlers need.
type Server struct {
	cfg               *config.Config
	queue             *queue.Queue
	notifier          notification.Notifier
	websocketNotifier *notification.WebSocketNotifier
	fetchQueue        *worker.FetchQueue
	authenticator     integration.Authenticator
	health            *health.Registry
	// releaseCache keeps recent release probes so the servers endpoint does
	// not hammer the fleet over ssh.
	releaseCache *gocache.Cache

	httpServer *http.Server
}

// NewServer wires the API worker.
func NewServer(cfg *config.Config, q *queue.Queue, notifier notification.Notifier,
	websocketNotifier *notification.WebSocketNotifier, fetchQueue *worker.FetchQueue,
	authenticator integration.Authenticator, registry *health.Registry,
) *Server {
	return &Server{
		cfg:               cfg,
		queue:             q,
		notifier:          notifier,
		websocketNotifier: websocketNotifier,
		fetchQueue:        fetchQueue,
		authenticator:     authenticator,
		health:            registry,
		releaseCache:      gocache.New(15*time.Second, time.Minute),
	}
}

// Name identifies the worker for the supervisor.
func (s *Server) Name() string {
	return "api"
}

// Start serves HTTP until Stop is called.
func (s *Server) Start() {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(CorsMiddleware())
	engine.Use(AuthMiddleware())
	s.registerRoutes(engine)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.General.APIPort),
		Handler: engine,
	}
	log.Infof("API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("API server stopped: %v", err)
	}
}

// Stop shuts the HTTP server down, letting in-flight requests finish.
func (s *Server) Stop() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/api/status", s.getStatus)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.POST("/api/auth/wssession", s.postAuthSession)
	engine.POST("/api/auth/token", s.postAuthToken)
	engine.GET("/api/account", s.getAccount)

	engine.POST("/notify/:provider", s.postNotify)
	engine.POST("/api/notification/updatedrepo", s.postNotificationUpdatedRepo)
	engine.POST("/api/notification/websocketevent", s.postNotificationWebsocketEvent)

	engine.GET("/api/environments", s.listEnvironments)
	engine.GET("/api/environments/:id", s.getEnvironment)
	engine.PUT("/api/environments/:id", s.putEnvironment)
	engine.DELETE("/api/environments/:id", s.deleteEnvironment)
	engine.POST("/api/environments/:id/deployments", s.postEnvironmentDeployment)
	engine.POST("/api/environments/:id/fetch", s.postEnvironmentFetch)
	engine.GET("/api/environments/:id/servers", s.getEnvironmentServers)
	engine.GET("/api/environments/:id/commits", s.getEnvironmentCommits)

	engine.GET("/api/repositories/", s.listRepositories)
	engine.POST("/api/repositories", s.postRepository)
	engine.GET("/api/repositories/byname/*name", s.getRepositoryByName)
	engine.GET("/api/repositories/:id", s.getRepository)
	engine.PUT("/api/repositories/:id", s.putRepository)
	engine.DELETE("/api/repositories/:id", s.deleteRepository)
	engine.GET("/api/repositories/:id/diff", s.getRepositoryDiff)
	engine.GET("/api/repositories/:id/environments/", s.listRepositoryEnvironments)
	engine.POST("/api/repositories/:id/environments", s.postRepositoryEnvironment)

	engine.GET("/api/deployments/recent", s.listRecentDeployments)
	engine.GET("/api/deployments/byrepo/:name", s.listDeploymentsByRepository)
	engine.GET("/api/deployments/:id", s.getDeploymentByID)

	engine.GET("/api/clusters", s.listClusters)
	engine.POST("/api/clusters", s.postCluster)
	engine.PUT("/api/clusters/:id", s.putCluster)
	engine.DELETE("/api/clusters/:id", s.deleteCluster)

	engine.GET("/api/servers/", s.listServers)
	engine.POST("/api/servers/", s.postServer)
	engine.PUT("/api/servers/:id", s.putServer)
	engine.DELETE("/api/servers/:id", s.deleteServer)
	engine.GET("/api/servers/:id/releases", s.getServerReleases)

	engine.GET("/api/users", s.listUsers)
	engine.POST("/api/users", s.postUser)
	engine.GET("/api/users/:id", s.getUser)
	engine.PUT("/api/users/:id", s.putUser)
	engine.DELETE("/api/users/:id", s.deleteUser)

	engine.GET("/api/roles", s.listRoles)
	engine.GET("/api/roles/:id", s.getRole)
	engine.POST("/api/roles", s.postRole)
	engine.PUT("/api/roles/:id", s.putRole)
	engine.DELETE("/api/roles/:id", s.deleteRole)
}

// getStatus answers the monitoring probe: 200 when healthy, 500 with the
// reason when any health key is degraded.
func (s *Server) getStatus(c *gin.Context) {
	status := s.health.GetStatus()
	if status.Degraded {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": 1,
			"error":  "this deployer instance is not healthy",
			"reason": status.Errors,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deployer API is up and running"})
}
