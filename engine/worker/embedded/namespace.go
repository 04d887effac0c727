package embedded

import (
	"context"
	"fmt"

	"github.com/compozy/graphsync/pkg/logger"
	"go.temporal.io/server/common/config"
	sqliteschema "go.temporal.io/server/schema/sqlite"
)

// createNamespace registers the configured namespace in the SQLite store.
// The schema itself is created by the plugin on open (see the "setup" and
// "mode=memory" connect attributes). Running it twice is a no-op.
func createNamespace(ctx context.Context, serverCfg *config.Config, cfg *Config) error {
	store, ok := serverCfg.Persistence.DataStores[serverCfg.Persistence.DefaultStore]
	if !ok || store.SQL == nil {
		return fmt.Errorf("default store %q is not a SQL store", serverCfg.Persistence.DefaultStore)
	}
	nsConfig, err := sqliteschema.NewNamespaceConfig(clusterName, cfg.Namespace, false, nil)
	if err != nil {
		return fmt.Errorf("build namespace config: %w", err)
	}
	if err := sqliteschema.CreateNamespaces(store.SQL, nsConfig); err != nil {
		return fmt.Errorf("create namespace %q: %w", cfg.Namespace, err)
	}
	logger.FromContext(ctx).Debug("Namespace ready",
		"namespace", cfg.Namespace,
		"cluster", clusterName,
		"database", cfg.databaseName(),
	)
	return nil
}
