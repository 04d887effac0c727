package monitoring

import (
	"testing"

	"github.com/compozy/graphsync/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "Should accept defaults", cfg: *DefaultConfig()},
		{name: "Should reject empty path", cfg: Config{Addr: ":9464"}, wantErr: "cannot be empty"},
		{name: "Should reject relative path", cfg: Config{Path: "metrics"}, wantErr: "must start with '/'"},
		{name: "Should reject health path", cfg: Config{Path: "/health"}, wantErr: "shadow /health"},
		{name: "Should reject query parameters", cfg: Config{Path: "/metrics?x=1"}, wantErr: "query parameters"},
		{
			name:    "Should require an address when enabled",
			cfg:     Config{Enabled: true, Path: "/metrics"},
			wantErr: "address cannot be empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigFromApp(t *testing.T) {
	t.Run("Should copy values from application config", func(t *testing.T) {
		cfg := ConfigFromApp(&config.MonitoringConfig{Enabled: true, Addr: ":9999", Path: "/prom"})
		assert.Equal(t, &Config{Enabled: true, Addr: ":9999", Path: "/prom"}, cfg)
	})
	t.Run("Should fall back to defaults for empty fields", func(t *testing.T) {
		cfg := ConfigFromApp(&config.MonitoringConfig{Enabled: true})
		assert.Equal(t, ":9464", cfg.Addr)
		assert.Equal(t, "/metrics", cfg.Path)
		assert.Equal(t, DefaultConfig(), ConfigFromApp(nil))
	})
}
