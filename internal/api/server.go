package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"confluence-engine/internal/database"
	"confluence-engine/internal/events"
	"confluence-engine/internal/logging"
	"confluence-engine/internal/plans"
	"confluence-engine/internal/scanner"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins string // comma-separated, "*" allows all
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	scanner    *scanner.Scanner
	tracker    *plans.Tracker
	repo       *database.Repository
	eventBus   *events.EventBus
	hub        *WSHub
	config     ServerConfig
	logger     *logging.Logger
}

// NewServer creates the API server. Repository and tracker may be nil;
// the affected endpoints then serve from in-memory state only.
func NewServer(
	sc *scanner.Scanner,
	tracker *plans.Tracker,
	repo *database.Repository,
	eventBus *events.EventBus,
	config ServerConfig,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		scanner:  sc,
		tracker:  tracker,
		repo:     repo,
		eventBus: eventBus,
		hub:      NewWSHub(),
		config:   config,
		logger:   logging.WithComponent("API"),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.corsMiddleware())
	s.setupRoutes()
	s.subscribeEvents()

	return s
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	origins := strings.TrimSpace(s.config.AllowedOrigins)
	if origins == "" || origins == "*" {
		cfg.AllowAllOrigins = true
	} else {
		for _, o := range strings.Split(origins, ",") {
			cfg.AllowOrigins = append(cfg.AllowOrigins, strings.TrimSpace(o))
		}
	}
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	return cors.New(cfg)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	{
		api.GET("/snapshots", s.handleListSnapshots)
		api.GET("/snapshots/:symbol", s.handleGetSnapshot)
		api.GET("/zones/:symbol", s.handleGetZones)
		api.GET("/plans", s.handleListPlans)
		api.GET("/plans/active", s.handleActivePlans)
		api.POST("/scan", s.handleTriggerScan)
	}
}

// subscribeEvents forwards every bus event to connected websocket clients
func (s *Server) subscribeEvents() {
	if s.eventBus == nil {
		return
	}
	s.eventBus.SubscribeAll(func(e events.Event) {
		s.hub.BroadcastEvent(e)
	})
}

// Start runs the websocket hub and the HTTP listener. Blocks until the
// listener stops.
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("API server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP listener
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
