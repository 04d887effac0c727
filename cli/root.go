package cli

import (
	"context"
	"fmt"

	"github.com/compozy/graphsync/pkg/config"
	"github.com/compozy/graphsync/pkg/logger"
	"github.com/compozy/graphsync/pkg/version"
	"github.com/spf13/cobra"
)

const (
	defaultConfigFile = "graphsync.yaml"
	defaultEnvFile    = ".env"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "graphsync",
		Short:         "Run and trigger graph syncs on Temporal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Get().Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", defaultConfigFile, "Path to the YAML config file")
	flags.String("env-file", defaultEnvFile, "Path to a .env file loaded before the config")
	flags.String("log-level", "info", "Log level (debug, info, warn, error, disabled)")
	flags.Bool("log-json", false, "Emit logs as JSON")
	flags.Bool("log-source", false, "Include source location in logs")
	flags.String("temporal-host-port", "", "Temporal frontend address")
	flags.String("temporal-namespace", "", "Temporal namespace")
	flags.String("workflow-queue", "", "Task queue polled by the workflow worker")
	flags.String("activity-queue", "", "Task queue polled by the activity worker")

	root.AddCommand(
		WorkerCmd(),
		TriggerCmd(),
		StatusCmd(),
		CancelCmd(),
		DevCmd(),
		VersionCmd(),
	)

	return root
}

// SetupGlobalConfig loads the env file and configuration for cmd and
// attaches the resulting config and logger to its context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	if _, err := loadEnvFile(cmd); err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogJSON, cfg.Runtime.LogSource)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	return nil
}

func loadConfig(ctx context.Context, cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	var sources []config.Source
	if configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	}
	flags := make(map[string]any)
	extractCLIFlags(cmd, flags)
	sources = append(sources, config.NewCLIProvider(flags))
	cfg, err := config.NewService().Load(ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
