package monitoring

import (
	"fmt"
	"strings"

	"github.com/compozy/graphsync/pkg/config"
)

// Config holds configuration for the monitoring service.
type Config struct {
	Enabled bool
	Addr    string
	Path    string
}

// DefaultConfig returns the default monitoring configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		Addr:    ":9464",
		Path:    "/metrics",
	}
}

// ConfigFromApp builds the monitoring configuration from the application config.
func ConfigFromApp(cfg *config.MonitoringConfig) *Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	out.Enabled = cfg.Enabled
	if cfg.Addr != "" {
		out.Addr = cfg.Addr
	}
	if cfg.Path != "" {
		out.Path = cfg.Path
	}
	return out
}

// Validate validates the monitoring configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("monitoring path cannot be empty")
	}
	if c.Path[0] != '/' {
		return fmt.Errorf("monitoring path must start with '/': got %s", c.Path)
	}
	if c.Path == "/health" {
		return fmt.Errorf("monitoring path cannot shadow /health")
	}
	if strings.ContainsRune(c.Path, '?') {
		return fmt.Errorf("monitoring path cannot contain query parameters")
	}
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("monitoring address cannot be empty when monitoring is enabled")
	}
	return nil
}
