package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/compozy/graphsync/engine/infra/monitoring"
	"github.com/compozy/graphsync/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Info describes the worker process served by the ops endpoint.
type Info struct {
	Role      string
	TaskQueue string
	Identity  string
}

// OpsServer exposes /health and the Prometheus metrics path for a worker process.
type OpsServer struct {
	info    Info
	monitor *monitoring.Service
	router  *gin.Engine
	started time.Time
	ready   atomic.Bool
}

// NewOpsServer builds the router. The server reports not ready until SetReady(true).
func NewOpsServer(ctx context.Context, monitor *monitoring.Service, info Info) *OpsServer {
	s := &OpsServer{info: info, monitor: monitor, started: time.Now()}
	s.router = s.buildRouter(ctx)
	return s
}

func (s *OpsServer) buildRouter(ctx context.Context) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger.FromContext(ctx)))
	router.Use(s.monitor.GinMiddleware(ctx))
	router.GET("/health", s.healthHandler)
	router.GET(s.monitor.Config().Path, gin.WrapH(s.monitor.ExporterHandler()))
	return router
}

// SetReady flips the readiness reported by /health.
func (s *OpsServer) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *OpsServer) Handler() http.Handler {
	return s.router
}

func (s *OpsServer) healthHandler(c *gin.Context) {
	ready := s.ready.Load()
	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"data": gin.H{
			"status":         status,
			"ready":          ready,
			"role":           s.info.Role,
			"task_queue":     s.info.TaskQueue,
			"identity":       s.info.Identity,
			"uptime_seconds": int64(time.Since(s.started).Seconds()),
		},
		"message": "Success",
	})
}

// Run listens on the configured monitoring address until ctx is canceled.
func (s *OpsServer) Run(ctx context.Context) error {
	addr := s.monitor.Config().Addr
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln and shuts down gracefully when ctx is canceled.
func (s *OpsServer) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.FromContext(ctx)
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	log.Info("Starting ops server", "address", fmt.Sprintf("http://%s", ln.Addr()))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ops server failed: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown failed: %w", err)
	}
	log.Debug("Ops server stopped")
	return nil
}
