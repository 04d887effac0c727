package embedded

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/compozy/graphsync/pkg/config"
)

const (
	memoryDatabase = ":memory:"
	clusterName    = "graphsync-dev"
	// history, matching and worker listen on the three ports after the frontend.
	extraServicePorts = 3
	maxPort           = 65535
)

var serverLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Config describes the single-process Temporal cluster behind `graphsync dev`.
// Namespace and the two task queues mirror the client configuration so the
// workers and the trigger reach what the server registers.
type Config struct {
	DatabaseFile string
	BindIP       string
	FrontendPort int
	EnableUI     bool
	UIPort       int
	LogLevel     string
	StartTimeout time.Duration

	Namespace     string
	WorkflowQueue string
	ActivityQueue string
}

func FromAppConfig(cfg *config.Config) *Config {
	return &Config{
		DatabaseFile:  cfg.Dev.DatabaseFile,
		BindIP:        cfg.Dev.BindIP,
		FrontendPort:  cfg.Dev.FrontendPort,
		EnableUI:      cfg.Dev.EnableUI,
		UIPort:        cfg.Dev.UIPort,
		LogLevel:      cfg.Dev.LogLevel,
		StartTimeout:  cfg.Dev.StartTimeout,
		Namespace:     cfg.Temporal.Namespace,
		WorkflowQueue: cfg.Temporal.WorkflowQueue,
		ActivityQueue: cfg.Temporal.ActivityQueue,
	}
}

func (c *Config) inMemory() bool {
	return c.DatabaseFile == "" || c.DatabaseFile == memoryDatabase
}

func (c *Config) databaseName() string {
	if c.inMemory() {
		return memoryDatabase
	}
	return c.DatabaseFile
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if net.ParseIP(c.BindIP) == nil {
		return fmt.Errorf("invalid bind IP %q", c.BindIP)
	}
	if c.FrontendPort <= 0 || c.FrontendPort+extraServicePorts > maxPort {
		return fmt.Errorf("frontend port %d leaves no room for the %d service ports after it", c.FrontendPort, extraServicePorts)
	}
	if c.EnableUI {
		if c.UIPort <= 0 || c.UIPort > maxPort {
			return fmt.Errorf("ui port must be between 1 and %d", maxPort)
		}
		if c.UIPort >= c.FrontendPort && c.UIPort <= c.FrontendPort+extraServicePorts {
			return fmt.Errorf("ui port %d collides with the temporal service ports", c.UIPort)
		}
	}
	if !serverLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid server log level %q", c.LogLevel)
	}
	if c.StartTimeout <= 0 {
		return errors.New("start timeout must be positive")
	}
	if c.Namespace == "" {
		return errors.New("namespace is required")
	}
	if c.WorkflowQueue == "" || c.ActivityQueue == "" {
		return errors.New("workflow and activity queues are required")
	}
	if !c.inMemory() {
		dir := filepath.Dir(c.DatabaseFile)
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("database directory %q not accessible: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("database directory %q is not a directory", dir)
		}
	}
	return nil
}

// Endpoints is what a started dev server offers to workers and operators.
type Endpoints struct {
	FrontendAddr  string `json:"frontend_addr"`
	UIURL         string `json:"ui_url,omitempty"`
	Namespace     string `json:"namespace"`
	WorkflowQueue string `json:"workflow_queue"`
	ActivityQueue string `json:"activity_queue"`
	Database      string `json:"database"`
}

func (c *Config) endpoints() *Endpoints {
	ep := &Endpoints{
		FrontendAddr:  hostPort(dialHost(c.BindIP), c.FrontendPort),
		Namespace:     c.Namespace,
		WorkflowQueue: c.WorkflowQueue,
		ActivityQueue: c.ActivityQueue,
		Database:      c.databaseName(),
	}
	if c.EnableUI {
		ep.UIURL = "http://" + hostPort(dialHost(c.BindIP), c.UIPort)
	}
	return ep
}

// Apply returns a copy of cfg whose client settings point at the dev server.
func (e *Endpoints) Apply(cfg *config.Config) *config.Config {
	out := *cfg
	out.Temporal.HostPort = e.FrontendAddr
	out.Temporal.Namespace = e.Namespace
	out.Temporal.WorkflowQueue = e.WorkflowQueue
	out.Temporal.ActivityQueue = e.ActivityQueue
	return &out
}
