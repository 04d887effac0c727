package embedded

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/compozy/graphsync/pkg/logger"
	uiserver "github.com/temporalio/ui-server/v2/server"
	uiconfig "github.com/temporalio/ui-server/v2/server/config"
	uiserveroptions "github.com/temporalio/ui-server/v2/server/server_options"
)

// uiServer runs the Temporal Web UI next to the dev server, opened on the
// graph sync namespace.
type uiServer struct {
	mu      sync.Mutex
	cfg     *Config
	address string
	server  *uiserver.Server
	done    chan error
}

func newUIServer(cfg *Config) *uiServer {
	if !cfg.EnableUI {
		return nil
	}
	return &uiServer{cfg: cfg, address: hostPort(cfg.BindIP, cfg.UIPort)}
}

func (u *uiServer) uiConfig() *uiconfig.Config {
	return &uiconfig.Config{
		Host:                u.cfg.BindIP,
		Port:                u.cfg.UIPort,
		TemporalGRPCAddress: hostPort(dialHost(u.cfg.BindIP), u.cfg.FrontendPort),
		EnableUI:            true,
		DefaultNamespace:    u.cfg.Namespace,
		HideLogs:            true,
		CORS:                uiconfig.CORS{CookieInsecure: true},
	}
}

func (u *uiServer) start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.server != nil {
		return errors.New("temporal ui already started")
	}
	srv := uiserver.NewServer(uiserveroptions.WithConfigProvider(u.uiConfig()))
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	if err := waitForPort(ctx, hostPort(dialHost(u.cfg.BindIP), u.cfg.UIPort), done); err != nil {
		srv.Stop()
		return fmt.Errorf("temporal ui on %s: %w", u.address, err)
	}
	u.server = srv
	u.done = done
	logger.FromContext(ctx).Debug("Temporal UI started", "addr", u.address)
	return nil
}

func (u *uiServer) stop(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.server == nil {
		return nil
	}
	u.server.Stop()
	done := u.done
	u.server, u.done = nil, nil
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("temporal ui stop timeout: %w", ctx.Err())
	}
}
