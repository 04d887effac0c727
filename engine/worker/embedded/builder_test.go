package embedded

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/server/common/primitives"
)

func TestBuildTemporalConfig(t *testing.T) {
	t.Run("Should run every service on consecutive ports of one sqlite store", func(t *testing.T) {
		cfg := validConfig()
		cfg.FrontendPort = 17233

		sc := buildTemporalConfig(cfg)

		store, ok := sc.Persistence.DataStores[sc.Persistence.DefaultStore]
		require.True(t, ok)
		require.NotNil(t, store.SQL)
		assert.Equal(t, memoryDatabase, store.SQL.DatabaseName)
		assert.Equal(t, sc.Persistence.DefaultStore, sc.Persistence.VisibilityStore)
		assert.Equal(t, 17233, sc.Services[string(primitives.FrontendService)].RPC.GRPCPort)
		assert.Equal(t, 17234, sc.Services[string(primitives.HistoryService)].RPC.GRPCPort)
		assert.Equal(t, 17235, sc.Services[string(primitives.MatchingService)].RPC.GRPCPort)
		assert.Equal(t, 17236, sc.Services[string(primitives.WorkerService)].RPC.GRPCPort)
		assert.Equal(t, clusterName, sc.ClusterMetadata.CurrentClusterName)
		assert.Contains(t, sc.ClusterMetadata.ClusterInformation, clusterName)
		assert.Equal(t, "127.0.0.1:17233", sc.PublicClient.HostPort)
	})
	t.Run("Should keep a file database with schema setup on open", func(t *testing.T) {
		cfg := validConfig()
		cfg.DatabaseFile = filepath.Join(t.TempDir(), "dev.db")

		sc := buildTemporalConfig(cfg)

		store := sc.Persistence.DataStores[sc.Persistence.DefaultStore]
		assert.Equal(t, cfg.DatabaseFile, store.SQL.DatabaseName)
		assert.Equal(t, "true", store.SQL.ConnectAttributes["setup"])
		assert.Equal(t, "wal", store.SQL.ConnectAttributes["journal_mode"])
	})
	t.Run("Should share a single in-memory database", func(t *testing.T) {
		attrs := buildSQLiteConnectAttrs(validConfig())
		assert.Equal(t, "memory", attrs["mode"])
		assert.Equal(t, "shared", attrs["cache"])
		assert.NotContains(t, attrs, "setup")
	})
}

func TestBuildStaticHosts(t *testing.T) {
	t.Run("Should pin each service to its own address", func(t *testing.T) {
		cfg := validConfig()
		cfg.FrontendPort = 17233
		hosts := buildStaticHosts(cfg)
		require.Len(t, hosts, 4)
		assert.Equal(t, "127.0.0.1:17235", hosts[primitives.MatchingService].Self)
		assert.Equal(t, []string{"127.0.0.1:17235"}, hosts[primitives.MatchingService].All)
	})
}

func TestBuildLogConfig(t *testing.T) {
	t.Run("Should follow the dev server log level", func(t *testing.T) {
		cfg := validConfig()
		cfg.LogLevel = "error"
		assert.Equal(t, "error", buildLogConfig(cfg).Level)
	})
}
