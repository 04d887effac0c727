package cli

import (
	"context"
	"fmt"

	"github.com/compozy/graphsync/engine/graphsync"
	"github.com/compozy/graphsync/engine/infra/cache"
	"github.com/compozy/graphsync/engine/infra/server"
	"github.com/compozy/graphsync/engine/worker"
	"github.com/compozy/graphsync/engine/worker/embedded"
	"github.com/compozy/graphsync/pkg/config"
	"github.com/compozy/graphsync/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const devRole = "dev"

func DevCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run an embedded Temporal server with both workers in one process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDev(cmd.Context())
		},
	}
	cmd.Flags().Bool("ui", true, "Serve the Temporal Web UI")
	cmd.Flags().Int("ui-port", 0, "Temporal Web UI port")
	cmd.Flags().String("db-file", "", "SQLite database file (:memory: keeps state in memory)")
	cmd.Flags().Int("frontend-port", 0, "Temporal frontend gRPC port")
	cmd.Flags().String("failure-mode", "report", "How failed syncs surface: report or propagate")
	addMonitoringFlags(cmd)
	return cmd
}

func runDev(ctx context.Context) error {
	ctx, stop := signalContext(ctx)
	defer stop()
	appCfg := config.FromContext(ctx)
	log := logger.FromContext(ctx)

	srv, err := embedded.NewServer(ctx, embedded.FromAppConfig(appCfg))
	if err != nil {
		return fmt.Errorf("failed to prepare embedded temporal: %w", err)
	}
	endpoints, err := srv.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start embedded temporal: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appCfg.Worker.ShutdownTimeout+monitorShutdownTimeout)
		defer cancel()
		if err := srv.Stop(stopCtx); err != nil {
			log.Warn("Failed to stop embedded temporal", "error", err)
		}
	}()

	cfg := endpoints.Apply(appCfg)
	ctx = config.ContextWithConfig(ctx, cfg)

	monitor := newMonitor(ctx, cfg)
	defer shutdownMonitor(ctx, monitor)

	client, err := worker.NewClient(ctx, &cfg.Temporal, worker.WithIdentity(worker.Identity(devRole, cfg.Worker.Identity)))
	if err != nil {
		return err
	}
	defer client.Close()

	store, closeStore, err := devLockStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	locks, closeLocks, err := newLockManager(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer closeLocks()
	acts, err := newActivities(cfg, locks)
	if err != nil {
		return err
	}

	ops := server.NewOpsServer(ctx, monitor, server.Info{
		Role:      devRole,
		TaskQueue: cfg.Temporal.WorkflowQueue,
		Identity:  worker.Identity(devRole, cfg.Worker.Identity),
	})
	opts := []worker.Option{
		worker.WithMetrics(monitor.TemporalInterceptor(ctx)),
		worker.WithReadiness(ops),
	}
	activityWorker := worker.NewActivityWorker(client, cfg, acts, opts...)
	workflowWorker := worker.NewWorkflowWorker(client, cfg, graphsync.NewDefinition(cfg), opts...)

	log.Info("Development environment ready",
		"temporal", endpoints.FrontendAddr,
		"ui", endpoints.UIURL,
		"namespace", endpoints.Namespace,
		"workflow_queue", endpoints.WorkflowQueue,
		"activity_queue", endpoints.ActivityQueue,
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return activityWorker.Run(gctx) })
	g.Go(func() error { return workflowWorker.Run(gctx) })
	if cfg.Monitoring.Enabled {
		g.Go(func() error { return ops.Run(gctx) })
	}
	return g.Wait()
}

// devLockStore runs an in-process Redis when locking is enabled and no
// Redis URL is configured.
func devLockStore(ctx context.Context, cfg *config.Config) (redis.UniversalClient, func(), error) {
	if !cfg.Lock.Enabled || cfg.Redis.URL != "" {
		return nil, func() {}, nil
	}
	mr, err := cache.NewMiniredisEmbedded(ctx)
	if err != nil {
		return nil, func() {}, err
	}
	return mr.Client(), func() { _ = mr.Close() }, nil
}
