// Package api is the admin surface: configuration management, signal
// history, engine introspection and the live signal WebSocket. It is off
// the hot path; its only coupling to the pipeline is the config manager
// and the event bus.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ta-signal-bot/internal/configstore"
	"ta-signal-bot/internal/database"
	"ta-signal-bot/internal/events"
	"ta-signal-bot/internal/strategy"
)

// EngineStatus exposes the running engine to the API without importing it.
type EngineStatus interface {
	HoldCounts() map[string]int64
	DisabledStrategies() []string
	ReenableStrategy(strategyID string)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig
	configs    *configstore.Manager
	registry   *strategy.Registry
	repo       *database.Repository
	engine     EngineStatus
	eventBus   *events.EventBus
	hub        *WSHub
}

// NewServer creates a new API server
func NewServer(
	config ServerConfig,
	configs *configstore.Manager,
	registry *strategy.Registry,
	repo *database.Repository,
	engine EngineStatus,
	eventBus *events.EventBus,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8088"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:   router,
		config:   config,
		configs:  configs,
		registry: registry,
		repo:     repo,
		engine:   engine,
		eventBus: eventBus,
		hub:      NewWSHub(),
	}

	server.setupRoutes()
	server.hub.SubscribeTo(eventBus)

	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws/signals", s.handleSignalSocket)

	v1 := s.router.Group("/api/v1")
	{
		appCfg := v1.Group("/config/application")
		{
			appCfg.GET("", s.handleGetAppConfig)
			appCfg.POST("", s.handleUpdateAppConfig)
			appCfg.GET("/audit", s.handleAppConfigAudit)
			appCfg.POST("/cache/refresh", s.handleCacheRefresh)
		}

		strategies := v1.Group("/strategies")
		{
			strategies.GET("", s.handleListStrategies)
			strategies.GET("/:id/config", s.handleGetStrategyConfig)
			strategies.POST("/:id/config", s.handlePutStrategyConfig)
			strategies.DELETE("/:id/config", s.handleDeleteStrategyConfig)
			strategies.GET("/:id/config/:symbol", s.handleGetStrategyConfig)
			strategies.POST("/:id/config/:symbol", s.handlePutStrategyConfig)
			strategies.DELETE("/:id/config/:symbol", s.handleDeleteStrategyConfig)
			strategies.GET("/:id/audit", s.handleStrategyAudit)
			strategies.POST("/:id/reenable", s.handleReenableStrategy)
		}

		v1.GET("/signals", s.handleRecentSignals)
		v1.GET("/engine/status", s.handleEngineStatus)
	}
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go s.hub.Run()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
