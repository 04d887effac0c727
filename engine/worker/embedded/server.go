// Package embedded runs a single-process Temporal cluster on SQLite for
// local development, optionally with the Temporal Web UI.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/compozy/graphsync/pkg/logger"
	"go.temporal.io/server/common/log"
	"go.temporal.io/server/temporal"
)

const (
	readyPollInterval = 100 * time.Millisecond
	readyDialTimeout  = 50 * time.Millisecond
)

var errAlreadyStarted = errors.New("embedded temporal server already started")

type Server struct {
	mu       sync.Mutex
	cfg      *Config
	temporal temporal.Server
	ui       *uiServer
	started  bool
}

// NewServer validates cfg, registers the namespace in the SQLite store and
// prepares the Temporal services without starting them.
func NewServer(ctx context.Context, cfg *Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid dev server config: %w", err)
	}
	serverCfg := buildTemporalConfig(cfg)
	if err := createNamespace(ctx, serverCfg, cfg); err != nil {
		return nil, err
	}
	if err := ensurePortsFree(ctx, cfg); err != nil {
		return nil, err
	}
	ts, err := temporal.NewServer(
		temporal.WithConfig(serverCfg),
		temporal.ForServices(temporal.DefaultServices),
		temporal.WithStaticHosts(buildStaticHosts(cfg)),
		temporal.WithLogger(log.NewZapLogger(log.BuildZapLogger(buildLogConfig(cfg)))),
	)
	if err != nil {
		return nil, fmt.Errorf("create temporal server: %w", err)
	}
	logger.FromContext(ctx).Debug("Embedded Temporal server prepared",
		"database", cfg.databaseName(),
		"frontend_port", cfg.FrontendPort,
		"namespace", cfg.Namespace,
	)
	return &Server{cfg: cfg, temporal: ts, ui: newUIServer(cfg)}, nil
}

// Start boots the services, waits for the frontend to accept connections and
// returns the endpoints workers should use. A UI that fails to start is
// logged and left out of the endpoints.
func (s *Server) Start(ctx context.Context) (*Endpoints, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, errAlreadyStarted
	}
	log := logger.FromContext(ctx)
	begin := time.Now()
	if err := s.temporal.Start(); err != nil {
		return nil, fmt.Errorf("start temporal server: %w", err)
	}
	readyCtx, cancel := context.WithTimeout(ctx, s.cfg.StartTimeout)
	defer cancel()
	ep := s.cfg.endpoints()
	if err := waitForPort(readyCtx, ep.FrontendAddr, nil); err != nil {
		if stopErr := s.temporal.Stop(); stopErr != nil {
			log.Error("Failed to stop Temporal server after startup error", "error", stopErr)
		}
		return nil, fmt.Errorf("temporal frontend %s not ready: %w", ep.FrontendAddr, err)
	}
	s.started = true
	if s.ui != nil {
		if err := s.ui.start(ctx); err != nil {
			log.Warn("Temporal UI unavailable", "error", err)
			ep.UIURL = ""
		}
	}
	log.Info("Embedded Temporal server ready",
		"frontend_addr", ep.FrontendAddr,
		"namespace", ep.Namespace,
		"workflow_queue", ep.WorkflowQueue,
		"activity_queue", ep.ActivityQueue,
		"database", ep.Database,
		"ui", ep.UIURL,
		"duration", time.Since(begin),
	)
	return ep, nil
}

// Stop shuts the UI and the services down, waiting at most until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	log := logger.FromContext(ctx)
	if s.ui != nil {
		if err := s.ui.stop(ctx); err != nil {
			log.Warn("Failed to stop Temporal UI", "error", err)
		}
	}
	done := make(chan error, 1)
	go func() { done <- s.temporal.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("stop temporal server: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("temporal server stop timeout: %w", ctx.Err())
	}
	log.Info("Embedded Temporal server stopped")
	return nil
}

// ensurePortsFree fails fast when another process, often a second
// `graphsync dev`, already holds one of the ports.
func ensurePortsFree(ctx context.Context, cfg *Config) error {
	ports := make([]int, 0, extraServicePorts+2)
	for offset := 0; offset <= extraServicePorts; offset++ {
		ports = append(ports, cfg.FrontendPort+offset)
	}
	if cfg.EnableUI {
		ports = append(ports, cfg.UIPort)
	}
	var lc net.ListenConfig
	for _, port := range ports {
		l, err := lc.Listen(ctx, "tcp", hostPort(cfg.BindIP, port))
		if err != nil {
			return fmt.Errorf("dev server port %d on %s is unavailable: %w", port, cfg.BindIP, err)
		}
		_ = l.Close()
	}
	return nil
}

// waitForPort polls addr until it accepts a connection, ctx ends or exited
// yields. A nil exited channel is never selected.
func waitForPort(ctx context.Context, addr string, exited <-chan error) error {
	dialer := &net.Dialer{Timeout: readyDialTimeout}
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-exited:
			if err == nil {
				err = errors.New("exited before becoming ready")
			}
			return err
		case <-ticker.C:
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err == nil {
				_ = conn.Close()
				return nil
			}
		}
	}
}

func dialHost(bindIP string) string {
	switch bindIP {
	case "", "0.0.0.0":
		return "127.0.0.1"
	case "::":
		return "::1"
	default:
		return bindIP
	}
}
