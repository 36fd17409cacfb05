// Package server wires the trace layer together and exposes the viewer
// HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/glasspane/glasspane/internal/batch"
	"github.com/glasspane/glasspane/internal/config"
	"github.com/glasspane/glasspane/internal/endpoint"
	"github.com/glasspane/glasspane/internal/hub"
	"github.com/glasspane/glasspane/internal/logging"
	"github.com/glasspane/glasspane/internal/middleware"
	"github.com/glasspane/glasspane/internal/monitoring"
	"github.com/glasspane/glasspane/internal/router"
	"github.com/glasspane/glasspane/internal/trace"
	"github.com/glasspane/glasspane/internal/ws"
)

// Server owns the hub, router, registry, and the viewer HTTP surface.
type Server struct {
	engine     *gin.Engine
	http       *http.Server
	hub        *hub.Hub
	router     *router.Router
	registry   *endpoint.Registry
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	instanceID string
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) (*Server, error) {
	if logger == nil {
		logger = logging.NewDefault()
	}

	mode, ok := trace.ParsePayloadMode(cfg.Trace.PayloadMode)
	if !ok {
		return nil, fmt.Errorf("server: unknown payload mode %q", cfg.Trace.PayloadMode)
	}

	h, err := hub.New(hub.Config{
		Capacity:        cfg.Trace.BufferCapacity,
		PayloadMode:     mode,
		PreviewMaxBytes: cfg.Trace.PreviewMaxBytes,
		Batch: batch.Config{
			MaxBatchSize:  cfg.Trace.BatchSize,
			MaxBatchDelay: cfg.Trace.BatchDelay,
		},
	}, logger.Logger, metrics)
	if err != nil {
		return nil, err
	}

	registry := endpoint.NewRegistry()
	rt := router.New(registry, h, h, logger.Logger, metrics)
	rt.SetDefaultTimeout(cfg.Trace.InvokeTimeout)

	// Call sites that don't thread the sink explicitly emit through the
	// process-wide port.
	trace.SetSink(h, logger.Logger)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	if cfg.RateLimit.Enabled {
		engine.Use(middleware.GlobalRateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.GlobalRequestsPerSecond,
			Burst:             cfg.RateLimit.GlobalBurst,
		}))
		engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	s := &Server{
		engine:     engine,
		hub:        h,
		router:     rt,
		registry:   registry,
		logger:     logger,
		metrics:    metrics,
		instanceID: uuid.NewString(),
	}

	wsHandler := ws.NewHandler(h, rt, registry, logger.Logger, metrics)

	engine.GET("/health", s.health)
	engine.GET("/ws/trace", wsHandler.HandleConnection)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/export", s.export)
	engine.GET("/status", s.status)

	return s, nil
}

// Hub exposes the trace server for embedding code.
func (s *Server) Hub() *hub.Hub { return s.hub }

// Router exposes the invoke router for embedding code.
func (s *Server) Router() *router.Router { return s.router }

// Registry exposes the endpoint registry for embedding code.
func (s *Server) Registry() *endpoint.Registry { return s.registry }

// Handler exposes the HTTP surface without binding a listener.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves the viewer surface until the listener fails or Close runs.
func (s *Server) Run(host, port string) error {
	addr := fmt.Sprintf("%s:%s", host, port)
	s.http = &http.Server{Addr: addr, Handler: s.engine}

	s.logger.Info("trace hub listening", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts the HTTP surface down and detaches the process sink.
func (s *Server) Close() error {
	trace.ResetSink()
	s.hub.Flush()

	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"instance":    s.instanceID,
		"subscribers": s.hub.SubscriberCount(),
		"pending":     s.router.PendingCount(),
	})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"instance": s.instanceID,
		"hub":      s.hub.Status(),
		"metrics":  s.metrics.GetSnapshot(),
	})
}

// export serves the versioned snapshot document over plain HTTP, the
// non-WebSocket path to the same data as the export command.
func (s *Server) export(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	data, err := s.hub.Export(format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch format {
	case "json.gz":
		c.Header("Content-Disposition", `attachment; filename="trace-export.json.gz"`)
		c.Data(http.StatusOK, "application/gzip", data)
	default:
		c.Data(http.StatusOK, "application/json", data)
	}
}
