// Package httpapi exposes the credential service over HTTP. Every worker
// process runs its own Server instance bound to the shared listening port.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/libp2p/go-reuseport"

	"github.com/dzaytsev/credkeeper/internal/logging"
	"github.com/dzaytsev/credkeeper/internal/server/config"
	"github.com/dzaytsev/credkeeper/internal/server/metrics"
	"github.com/dzaytsev/credkeeper/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	addr      string
	router    *gin.Engine
	logger    logging.Logger
	accounts  *services.AccountService
	metrics   *metrics.Metrics
	jwtSecret []byte
}

func NewServer(cfg *config.Config, l logging.Logger, accounts *services.AccountService, m *metrics.Metrics) *Server {
	s := &Server{
		addr:      cfg.EndpointAddr,
		logger:    l.With("module", "httpapi"),
		accounts:  accounts,
		metrics:   m,
		jwtSecret: []byte(cfg.SecretKey),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), s.countRequests())

	// public routes
	router.POST("/register", s.handleRegister)
	router.POST("/login", s.handleLogin)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// any authenticated caller
	router.GET("/protected-sample", s.requireAuth(), s.handleProtectedSample)

	// admin-only routes
	users := router.Group("/users", s.requireAuth(), s.requireAdmin())
	users.GET("", s.handleListAccounts)
	users.PUT("/:id", s.handleUpdateAccount)
	users.DELETE("/:id", s.handleDeleteAccount)

	return router
}

// Run binds the configured address with SO_REUSEPORT, so sibling workers
// share the socket, and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := reuseport.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{Handler: s.router}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.addr)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()

		c.Next()

		s.logger.Info(c.Request.Context(), "request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

func (s *Server) countRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RequestsTotal.WithLabelValues(
			c.Request.Method, route, fmt.Sprintf("%d", c.Writer.Status()),
		).Inc()
	}
}
