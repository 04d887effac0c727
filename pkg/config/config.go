package config

import (
	"context"
	"time"
)

// Config is the full process configuration shared by every graphsync command.
type Config struct {
	Temporal   TemporalConfig   `koanf:"temporal"`
	Worker     WorkerConfig     `koanf:"worker"`
	Sync       SyncConfig       `koanf:"sync"`
	Lock       LockConfig       `koanf:"lock"`
	Redis      RedisConfig      `koanf:"redis"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	Runtime    RuntimeConfig    `koanf:"runtime"`
	Dev        DevConfig        `koanf:"dev"`
}

// TemporalConfig contains Temporal connection and routing configuration.
type TemporalConfig struct {
	HostPort      string `koanf:"host_port"      env:"TEMPORAL_HOST_PORT"      validate:"required,hostname_port"`
	Namespace     string `koanf:"namespace"      env:"TEMPORAL_NAMESPACE"      validate:"required"`
	WorkflowQueue string `koanf:"workflow_queue" env:"TEMPORAL_WORKFLOW_QUEUE" validate:"required"`
	ActivityQueue string `koanf:"activity_queue" env:"TEMPORAL_ACTIVITY_QUEUE" validate:"required"`
}

// WorkerConfig controls poller lifecycle and concurrency.
type WorkerConfig struct {
	Identity                   string        `koanf:"identity"                      env:"WORKER_IDENTITY"`
	ShutdownTimeout            time.Duration `koanf:"shutdown_timeout"              env:"WORKER_SHUTDOWN_TIMEOUT"              validate:"min=0"`
	MaxConcurrentActivities    int           `koanf:"max_concurrent_activities"     env:"WORKER_MAX_CONCURRENT_ACTIVITIES"     validate:"min=0"`
	MaxConcurrentWorkflowTasks int           `koanf:"max_concurrent_workflow_tasks" env:"WORKER_MAX_CONCURRENT_WORKFLOW_TASKS" validate:"min=0"`
}

// SyncConfig describes the external graph-ingestion invocation.
// The database password is referenced by environment variable name only.
type SyncConfig struct {
	Command             string        `koanf:"command"                env:"SYNC_COMMAND"                validate:"required"`
	Neo4jURI            string        `koanf:"neo4j_uri"              env:"SYNC_NEO4J_URI"              validate:"required,uri"`
	Neo4jUser           string        `koanf:"neo4j_user"             env:"SYNC_NEO4J_USER"             validate:"required"`
	PasswordEnvVar      string        `koanf:"password_env_var"       env:"SYNC_NEO4J_PASSWORD_ENV_VAR" validate:"required,env_var_name"`
	Neo4jDatabase       string        `koanf:"neo4j_database"         env:"SYNC_NEO4J_DATABASE"`
	MappingFile         string        `koanf:"mapping_file"           env:"SYNC_MAPPING_FILE"`
	BestEffort          bool          `koanf:"best_effort"            env:"SYNC_BEST_EFFORT"`
	RequestedSyncs      []string      `koanf:"requested_syncs"        env:"SYNC_REQUESTED_SYNCS"`
	SelectedModules     []string      `koanf:"selected_modules"       env:"SYNC_SELECTED_MODULES"`
	ExtraArgs           string        `koanf:"extra_args"             env:"SYNC_EXTRA_ARGS"`
	WorkDir             string        `koanf:"work_dir"               env:"SYNC_WORK_DIR"`
	StartToCloseTimeout time.Duration `koanf:"start_to_close_timeout" env:"SYNC_START_TO_CLOSE_TIMEOUT" validate:"gt=0"`
	HeartbeatInterval   time.Duration `koanf:"heartbeat_interval"     env:"SYNC_HEARTBEAT_INTERVAL"     validate:"gt=0"`
	HeartbeatTimeout    time.Duration `koanf:"heartbeat_timeout"      env:"SYNC_HEARTBEAT_TIMEOUT"      validate:"min=0"`
	CancelGracePeriod   time.Duration `koanf:"cancel_grace_period"    env:"SYNC_CANCEL_GRACE_PERIOD"    validate:"min=0"`
	MaxOutputBytes      int64         `koanf:"max_output_bytes"       env:"SYNC_MAX_OUTPUT_BYTES"       validate:"gt=0"`
	FailureMode         string        `koanf:"failure_mode"           env:"SYNC_FAILURE_MODE"           validate:"oneof=report propagate"`
	MaxAttempts         int32         `koanf:"max_attempts"           env:"SYNC_MAX_ATTEMPTS"           validate:"min=1"`
}

// LockConfig guards the shared graph store against concurrent syncs.
type LockConfig struct {
	Enabled       bool          `koanf:"enabled"        env:"LOCK_ENABLED"`
	Key           string        `koanf:"key"            env:"LOCK_KEY"            validate:"required"`
	TTL           time.Duration `koanf:"ttl"            env:"LOCK_TTL"            validate:"gt=0"`
	WaitTimeout   time.Duration `koanf:"wait_timeout"   env:"LOCK_WAIT_TIMEOUT"   validate:"min=0"`
	RetryInterval time.Duration `koanf:"retry_interval" env:"LOCK_RETRY_INTERVAL" validate:"gt=0"`
}

// RedisConfig contains the lock store connection.
type RedisConfig struct {
	URL         string          `koanf:"url"          env:"REDIS_URL"`
	Addr        string          `koanf:"addr"         env:"REDIS_ADDR"`
	Password    SensitiveString `koanf:"password"     env:"REDIS_PASSWORD"     sensitive:"true"`
	DB          int             `koanf:"db"           env:"REDIS_DB"           validate:"min=0"`
	DialTimeout time.Duration   `koanf:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" validate:"min=0"`
}

// MonitoringConfig controls the worker ops endpoint and metrics.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Addr    string `koanf:"addr"    env:"MONITORING_ADDR"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"`
}

// RuntimeConfig contains logging behavior.
type RuntimeConfig struct {
	LogLevel  string `koanf:"log_level"  env:"LOG_LEVEL"  validate:"oneof=debug info warn error disabled"`
	LogJSON   bool   `koanf:"log_json"   env:"LOG_JSON"`
	LogSource bool   `koanf:"log_source" env:"LOG_SOURCE"`
}

// DevConfig configures the embedded development server.
type DevConfig struct {
	DatabaseFile string        `koanf:"database_file" env:"DEV_DATABASE_FILE"`
	BindIP       string        `koanf:"bind_ip"       env:"DEV_BIND_IP"       validate:"required,ip"`
	FrontendPort int           `koanf:"frontend_port" env:"DEV_FRONTEND_PORT" validate:"min=1,max=65535"`
	EnableUI     bool          `koanf:"enable_ui"     env:"DEV_ENABLE_UI"`
	UIPort       int           `koanf:"ui_port"       env:"DEV_UI_PORT"       validate:"min=1,max=65535"`
	LogLevel     string        `koanf:"log_level"     env:"DEV_LOG_LEVEL"`
	StartTimeout time.Duration `koanf:"start_timeout" env:"DEV_START_TIMEOUT" validate:"gt=0"`
}

// Service defines the configuration loading interface.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(config *Config) error
	// GetSource reports which source provided a key, for debugging precedence.
	GetSource(key string) SourceType
}

// Source defines the interface for configuration sources.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata contains metadata about configuration sources.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Load loads configuration from defaults and the environment.
func Load() (*Config, error) {
	return NewService().Load(context.Background())
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Temporal: TemporalConfig{
			HostPort:      "localhost:7233",
			Namespace:     "default",
			WorkflowQueue: "workflow-queue",
			ActivityQueue: "activity-queue",
		},
		Worker: WorkerConfig{
			ShutdownTimeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			Command:             "cartography",
			Neo4jURI:            "bolt://localhost:7687",
			Neo4jUser:           "neo4j",
			PasswordEnvVar:      "NEO4J_PASSWORD",
			BestEffort:          true,
			StartToCloseTimeout: time.Hour,
			HeartbeatInterval:   30 * time.Second,
			HeartbeatTimeout:    2 * time.Minute,
			CancelGracePeriod:   30 * time.Second,
			MaxOutputBytes:      1 << 20,
			FailureMode:         "report",
			MaxAttempts:         1,
		},
		Lock: LockConfig{
			Key:           "graphsync:lock:graph-store",
			TTL:           2 * time.Minute,
			WaitTimeout:   90 * time.Second,
			RetryInterval: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DialTimeout: 5 * time.Second,
		},
		Monitoring: MonitoringConfig{
			Addr: ":9464",
			Path: "/metrics",
		},
		Runtime: RuntimeConfig{
			LogLevel: "info",
		},
		Dev: DevConfig{
			DatabaseFile: ":memory:",
			BindIP:       "127.0.0.1",
			FrontendPort: 7233,
			EnableUI:     true,
			UIPort:       8233,
			LogLevel:     "warn",
			StartTimeout: 30 * time.Second,
		},
	}
}
