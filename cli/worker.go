package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compozy/graphsync/engine/graphsync"
	"github.com/compozy/graphsync/engine/graphsync/activities"
	"github.com/compozy/graphsync/engine/infra/cache"
	"github.com/compozy/graphsync/engine/infra/monitoring"
	"github.com/compozy/graphsync/engine/infra/server"
	"github.com/compozy/graphsync/engine/process"
	"github.com/compozy/graphsync/engine/worker"
	"github.com/compozy/graphsync/pkg/config"
	"github.com/compozy/graphsync/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const monitorShutdownTimeout = 5 * time.Second

func WorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a long-lived Temporal worker",
	}
	cmd.AddCommand(
		workerRoleCmd(worker.RoleActivity, "Poll the activity queue and run graph syncs"),
		workerRoleCmd(worker.RoleWorkflow, "Poll the workflow queue and run the graph sync workflow"),
	)
	return cmd
}

func workerRoleCmd(role worker.Role, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(role),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), role)
		},
	}
	addMonitoringFlags(cmd)
	if role == worker.RoleActivity {
		cmd.Flags().String("failure-mode", "report", "How failed syncs surface: report or propagate")
	}
	return cmd
}

func addMonitoringFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("monitoring", false, "Serve /health and Prometheus metrics")
	cmd.Flags().String("monitoring-addr", "", "Listen address of the ops endpoint")
}

func runWorker(ctx context.Context, role worker.Role) error {
	ctx, stop := signalContext(ctx)
	defer stop()
	cfg := config.FromContext(ctx)
	log := logger.FromContext(ctx).With("role", string(role))

	monitor := newMonitor(ctx, cfg)
	defer shutdownMonitor(ctx, monitor)

	identity := worker.Identity(role, cfg.Worker.Identity)
	client, err := worker.NewClient(ctx, &cfg.Temporal, worker.WithIdentity(identity))
	if err != nil {
		return err
	}
	defer client.Close()

	queue := cfg.Temporal.WorkflowQueue
	if role == worker.RoleActivity {
		queue = cfg.Temporal.ActivityQueue
	}
	ops := server.NewOpsServer(ctx, monitor, server.Info{Role: string(role), TaskQueue: queue, Identity: identity})
	opts := []worker.Option{
		worker.WithMetrics(monitor.TemporalInterceptor(ctx)),
		worker.WithReadiness(ops),
	}

	var w *worker.Worker
	switch role {
	case worker.RoleActivity:
		locks, closeLocks, err := newLockManager(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer closeLocks()
		acts, err := newActivities(cfg, locks)
		if err != nil {
			return err
		}
		w = worker.NewActivityWorker(client, cfg, acts, opts...)
	case worker.RoleWorkflow:
		w = worker.NewWorkflowWorker(client, cfg, graphsync.NewDefinition(cfg), opts...)
	default:
		return fmt.Errorf("unknown worker role %q", role)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	if cfg.Monitoring.Enabled {
		g.Go(func() error { return ops.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Worker exited")
	return nil
}

func newMonitor(ctx context.Context, cfg *config.Config) *monitoring.Service {
	return monitoring.NewMonitoringServiceWithFallback(ctx, monitoring.ConfigFromApp(&cfg.Monitoring))
}

func shutdownMonitor(ctx context.Context, monitor *monitoring.Service) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), monitorShutdownTimeout)
	defer cancel()
	if err := monitor.Shutdown(ctx); err != nil {
		logger.FromContext(ctx).Warn("Failed to shut down monitoring", "error", err)
	}
}

// newActivities validates the static sync options once at startup so a
// misconfigured worker never starts polling.
func newActivities(cfg *config.Config, locks cache.LockManager) (*activities.Activities, error) {
	opts, err := graphsync.OptionsFromConfig(&cfg.Sync)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(afero.NewOsFs()); err != nil {
		return nil, err
	}
	var extra []activities.Option
	if locks != nil {
		extra = append(extra, activities.WithLockManager(locks))
	}
	return activities.NewActivities(opts, process.NewRunner(), activities.SettingsFromConfig(cfg), extra...), nil
}

// newLockManager returns a nil manager when locking is disabled. A non-nil
// store is used as is; otherwise Redis is dialed from configuration.
func newLockManager(
	ctx context.Context,
	cfg *config.Config,
	store redis.UniversalClient,
) (cache.LockManager, func(), error) {
	noop := func() {}
	if !cfg.Lock.Enabled {
		return nil, noop, nil
	}
	closeFn := noop
	if store == nil {
		r, err := cache.NewRedis(ctx, cache.ConfigFromApp(&cfg.Redis))
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect lock store: %w", err)
		}
		store = r.Client()
		closeFn = func() {
			if err := r.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
				logger.FromContext(ctx).Warn("Failed to close redis", "error", err)
			}
		}
	}
	locks, err := cache.NewRedisLockManager(store)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	logger.FromContext(ctx).Info("Sync lock enabled", "key", cfg.Lock.Key, "ttl", cfg.Lock.TTL)
	return locks, closeFn, nil
}
