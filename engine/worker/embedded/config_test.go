package embedded

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/compozy/graphsync/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return FromAppConfig(config.Default())
}

func TestFromAppConfig(t *testing.T) {
	t.Run("Should take the namespace and queues from the client settings", func(t *testing.T) {
		app := config.Default()
		app.Temporal.Namespace = "graph"
		app.Temporal.WorkflowQueue = "sync-workflows"
		app.Temporal.ActivityQueue = "sync-activities"
		app.Dev.FrontendPort = 17233
		app.Dev.EnableUI = false

		cfg := FromAppConfig(app)

		assert.Equal(t, "graph", cfg.Namespace)
		assert.Equal(t, "sync-workflows", cfg.WorkflowQueue)
		assert.Equal(t, "sync-activities", cfg.ActivityQueue)
		assert.Equal(t, 17233, cfg.FrontendPort)
		assert.False(t, cfg.EnableUI)
		require.NoError(t, cfg.validate())
	})
	t.Run("Should accept the default dev section", func(t *testing.T) {
		cfg := validConfig()
		assert.True(t, cfg.inMemory())
		assert.NoError(t, cfg.validate())
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad bind ip", func(c *Config) { c.BindIP = "localhost" }, "invalid bind IP"},
		{"frontend port overflow", func(c *Config) { c.FrontendPort = 65534 }, "service ports"},
		{"ui port inside the service range", func(c *Config) { c.UIPort = c.FrontendPort + 2 }, "collides"},
		{"ui port out of range", func(c *Config) { c.UIPort = 70000 }, "ui port"},
		{"unknown server log level", func(c *Config) { c.LogLevel = "trace" }, "log level"},
		{"zero start timeout", func(c *Config) { c.StartTimeout = 0 }, "start timeout"},
		{"missing namespace", func(c *Config) { c.Namespace = "" }, "namespace"},
		{"missing queue", func(c *Config) { c.ActivityQueue = "" }, "queues"},
		{
			"database in a missing directory",
			func(c *Config) { c.DatabaseFile = filepath.Join("/nonexistent", "graphsync", "dev.db") },
			"not accessible",
		},
	}
	for _, tc := range cases {
		t.Run("Should reject "+tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
	t.Run("Should ignore the ui port when the ui is disabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.EnableUI = false
		cfg.UIPort = 0
		assert.NoError(t, cfg.validate())
	})
	t.Run("Should accept a database file in an existing directory", func(t *testing.T) {
		cfg := validConfig()
		cfg.DatabaseFile = filepath.Join(t.TempDir(), "dev.db")
		assert.NoError(t, cfg.validate())
		assert.False(t, cfg.inMemory())
	})
}

func TestEndpoints(t *testing.T) {
	t.Run("Should describe where workers connect", func(t *testing.T) {
		cfg := validConfig()
		cfg.BindIP = "0.0.0.0"
		cfg.FrontendPort = 17233
		cfg.UIPort = 18233

		ep := cfg.endpoints()

		assert.Equal(t, "127.0.0.1:17233", ep.FrontendAddr)
		assert.Equal(t, "http://127.0.0.1:18233", ep.UIURL)
		assert.Equal(t, memoryDatabase, ep.Database)
		assert.Equal(t, cfg.Namespace, ep.Namespace)
		assert.Equal(t, cfg.WorkflowQueue, ep.WorkflowQueue)
		assert.Equal(t, cfg.ActivityQueue, ep.ActivityQueue)
	})
	t.Run("Should omit the ui url when the ui is disabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.EnableUI = false
		assert.Empty(t, cfg.endpoints().UIURL)
	})
	t.Run("Should point a copy of the client settings at the dev server", func(t *testing.T) {
		app := config.Default()
		app.Temporal.HostPort = "temporal.internal:7233"
		app.Worker.ShutdownTimeout = 3 * time.Second
		ep := &Endpoints{
			FrontendAddr:  "127.0.0.1:17233",
			Namespace:     "graph",
			WorkflowQueue: "wf",
			ActivityQueue: "act",
		}

		out := ep.Apply(app)

		assert.Equal(t, "127.0.0.1:17233", out.Temporal.HostPort)
		assert.Equal(t, "graph", out.Temporal.Namespace)
		assert.Equal(t, "wf", out.Temporal.WorkflowQueue)
		assert.Equal(t, "act", out.Temporal.ActivityQueue)
		assert.Equal(t, 3*time.Second, out.Worker.ShutdownTimeout)
		assert.Equal(t, "temporal.internal:7233", app.Temporal.HostPort)
	})
}
