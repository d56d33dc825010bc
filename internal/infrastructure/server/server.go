package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Nauj93x/MoniSenso/internal/infrastructure/logging"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/monitoring"
)

// StatusFunc reports the live pipeline status served on /status.
type StatusFunc func() any

// Server is the optional ops listener: health, metrics and status.
type Server struct {
	router  *gin.Engine
	http    *http.Server
	logger  *logging.Logger
	metrics *monitoring.Metrics
	addr    string
	done    chan error
}

// New builds the ops router
func New(metrics *monitoring.Metrics, status StatusFunc, logger *logging.Logger, development bool) *Server {
	if !development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Accept", "Origin", "Cache-Control"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
	router.GET("/status", func(c *gin.Context) {
		body, err := sonic.Marshal(status())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	})

	return &Server{
		router:  router,
		logger:  logger,
		metrics: metrics,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds addr and serves in the background
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.addr = ln.Addr().String()
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.done = make(chan error, 1)

	s.logger.Info("Starting ops server", zap.String("addr", s.addr))
	go func() {
		err := s.http.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	return s.addr
}

// Shutdown stops the listener, waiting for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("Shutting down ops server...")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down ops server: %w", err)
	}
	return <-s.done
}
