package embedded

import (
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/server/common/cluster"
	"go.temporal.io/server/common/config"
	"go.temporal.io/server/common/log"
	"go.temporal.io/server/common/membership/static"
	sqliteplugin "go.temporal.io/server/common/persistence/sql/sqlplugin/sqlite"
	"go.temporal.io/server/common/primitives"
)

const (
	sqliteStoreName          = "sqlite-default"
	connectProtocol          = "tcp"
	failoverVersionIncrement = 10
	membershipJoinDuration   = 30 * time.Second
	archivalDisabled         = "disabled"
)

// servicePortOffsets places history, matching and worker right after the frontend port.
var servicePortOffsets = map[primitives.ServiceName]int{
	primitives.FrontendService: 0,
	primitives.HistoryService:  1,
	primitives.MatchingService: 2,
	primitives.WorkerService:   3,
}

func buildTemporalConfig(cfg *Config) *config.Config {
	frontendAddr := hostPort(cfg.BindIP, cfg.FrontendPort)
	sqlCfg := &config.SQL{
		PluginName:        sqliteplugin.PluginName,
		DatabaseName:      cfg.databaseName(),
		ConnectAddr:       cfg.BindIP,
		ConnectProtocol:   connectProtocol,
		ConnectAttributes: buildSQLiteConnectAttrs(cfg),
	}
	services := make(map[string]config.Service, len(servicePortOffsets))
	for svc, offset := range servicePortOffsets {
		services[string(svc)] = config.Service{
			RPC: config.RPC{
				GRPCPort: cfg.FrontendPort + offset,
				BindOnIP: cfg.BindIP,
			},
		}
	}
	return &config.Config{
		Global: config.Global{
			Membership: config.Membership{
				MaxJoinDuration:  membershipJoinDuration,
				BroadcastAddress: dialHost(cfg.BindIP),
			},
		},
		Persistence: config.Persistence{
			DefaultStore:     sqliteStoreName,
			VisibilityStore:  sqliteStoreName,
			NumHistoryShards: 1,
			DataStores: map[string]config.DataStore{
				sqliteStoreName: {SQL: sqlCfg},
			},
		},
		ClusterMetadata: &cluster.Config{
			EnableGlobalNamespace:    false,
			FailoverVersionIncrement: failoverVersionIncrement,
			MasterClusterName:        clusterName,
			CurrentClusterName:       clusterName,
			ClusterInformation: map[string]cluster.ClusterInformation{
				clusterName: {
					Enabled:                true,
					InitialFailoverVersion: 1,
					RPCAddress:             frontendAddr,
					ClusterID:              uuid.NewString(),
				},
			},
		},
		DCRedirectionPolicy: config.DCRedirectionPolicy{Policy: "noop"},
		Services:            services,
		Archival: config.Archival{
			History:    config.HistoryArchival{State: archivalDisabled},
			Visibility: config.VisibilityArchival{State: archivalDisabled},
		},
		NamespaceDefaults: config.NamespaceDefaults{
			Archival: config.ArchivalNamespaceDefaults{
				History:    config.HistoryArchivalNamespaceDefaults{State: archivalDisabled},
				Visibility: config.VisibilityArchivalNamespaceDefaults{State: archivalDisabled},
			},
		},
		PublicClient: config.PublicClient{HostPort: frontendAddr},
	}
}

// buildSQLiteConnectAttrs selects a shared in-memory database or a WAL file
// whose schema is created on first open.
func buildSQLiteConnectAttrs(cfg *Config) map[string]string {
	if cfg.inMemory() {
		return map[string]string{
			"mode":  "memory",
			"cache": "shared",
		}
	}
	return map[string]string{
		"cache":        "private",
		"journal_mode": "wal",
		"synchronous":  "2",
		"setup":        "true",
	}
}

func buildStaticHosts(cfg *Config) map[primitives.ServiceName]static.Hosts {
	hosts := make(map[primitives.ServiceName]static.Hosts, len(servicePortOffsets))
	for svc, offset := range servicePortOffsets {
		addr := hostPort(cfg.BindIP, cfg.FrontendPort+offset)
		hosts[svc] = static.Hosts{Self: addr, All: []string{addr}}
	}
	return hosts
}

func buildLogConfig(cfg *Config) log.Config {
	return log.Config{
		Stdout: true,
		Level:  cfg.LogLevel,
		Format: "console",
	}
}

func hostPort(ip string, port int) string {
	return net.JoinHostPort(ip, strconv.Itoa(port))
}
