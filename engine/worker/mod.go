package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compozy/graphsync/engine/graphsync"
	"github.com/compozy/graphsync/engine/graphsync/activities"
	monitoringinterceptor "github.com/compozy/graphsync/engine/infra/monitoring/interceptor"
	"github.com/compozy/graphsync/pkg/config"
	"github.com/compozy/graphsync/pkg/logger"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// -----------------------------------------------------------------------------
// Temporal-based Worker
// -----------------------------------------------------------------------------

type Role string

const (
	RoleActivity Role = "activity"
	RoleWorkflow Role = "workflow"
)

// ErrWorkerFatal wraps errors reported by the SDK that stop polling for good.
var ErrWorkerFatal = errors.New("worker stopped with a fatal error")

// taskWorker is the subset of worker.Worker used here.
type taskWorker interface {
	RegisterWorkflowWithOptions(w any, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a any, options activity.RegisterOptions)
	Start() error
	Stop()
}

type taskWorkerFactory func(taskQueue string, options worker.Options) taskWorker

// ReadinessReporter receives readiness transitions, e.g. the ops server.
type ReadinessReporter interface {
	SetReady(ready bool)
}

type Worker struct {
	role            Role
	taskQueue       string
	worker          taskWorker
	metrics         *monitoringinterceptor.WorkerMetrics
	readiness       ReadinessReporter
	shutdownTimeout time.Duration
	fatal           chan error
}

type Option func(*workerOptions)

type workerOptions struct {
	metrics   *monitoringinterceptor.WorkerMetrics
	readiness ReadinessReporter
}

// WithMetrics registers the metrics interceptor on the worker.
func WithMetrics(m *monitoringinterceptor.WorkerMetrics) Option {
	return func(o *workerOptions) { o.metrics = m }
}

// WithReadiness reports readiness changes while the worker runs.
func WithReadiness(r ReadinessReporter) Option {
	return func(o *workerOptions) { o.readiness = r }
}

// NewActivityWorker polls the activity queue and executes graph sync runs.
func NewActivityWorker(
	c *Client,
	cfg *config.Config,
	acts *activities.Activities,
	opts ...Option,
) *Worker {
	return newActivityWorker(c.taskWorkerFactory(), cfg, acts, opts...)
}

func newActivityWorker(
	factory taskWorkerFactory,
	cfg *config.Config,
	acts *activities.Activities,
	opts ...Option,
) *Worker {
	w := newWorker(factory, RoleActivity, cfg.Temporal.ActivityQueue, &cfg.Worker, opts...)
	w.worker.RegisterActivityWithOptions(acts.RunGraphSync, activity.RegisterOptions{Name: graphsync.ActivityName})
	return w
}

// NewWorkflowWorker polls the workflow queue and runs the graph sync workflow.
func NewWorkflowWorker(
	c *Client,
	cfg *config.Config,
	def *graphsync.Definition,
	opts ...Option,
) *Worker {
	return newWorkflowWorker(c.taskWorkerFactory(), cfg, def, opts...)
}

func newWorkflowWorker(
	factory taskWorkerFactory,
	cfg *config.Config,
	def *graphsync.Definition,
	opts ...Option,
) *Worker {
	w := newWorker(factory, RoleWorkflow, cfg.Temporal.WorkflowQueue, &cfg.Worker, opts...)
	w.worker.RegisterWorkflowWithOptions(def.Run, workflow.RegisterOptions{Name: graphsync.WorkflowName})
	return w
}

func newWorker(
	factory taskWorkerFactory,
	role Role,
	taskQueue string,
	cfg *config.WorkerConfig,
	opts ...Option,
) *Worker {
	var o workerOptions
	for _, opt := range opts {
		opt(&o)
	}
	w := &Worker{
		role:            role,
		taskQueue:       taskQueue,
		metrics:         o.metrics,
		readiness:       o.readiness,
		shutdownTimeout: cfg.ShutdownTimeout,
		fatal:           make(chan error, 1),
	}
	options := worker.Options{
		Identity:          Identity(role, cfg.Identity),
		WorkerStopTimeout: cfg.ShutdownTimeout,
		OnFatalError:      w.onFatalError,
	}
	switch role {
	case RoleActivity:
		options.MaxConcurrentActivityExecutionSize = cfg.MaxConcurrentActivities
		options.DisableWorkflowWorker = true
	case RoleWorkflow:
		options.MaxConcurrentWorkflowTaskExecutionSize = cfg.MaxConcurrentWorkflowTasks
		options.LocalActivityWorkerOnly = true
	}
	if o.metrics != nil {
		options.Interceptors = []interceptor.WorkerInterceptor{o.metrics}
	}
	w.worker = factory(taskQueue, options)
	return w
}

func (w *Worker) onFatalError(err error) {
	select {
	case w.fatal <- err:
	default:
	}
}

func (w *Worker) Role() Role {
	return w.role
}

func (w *Worker) TaskQueue() string {
	return w.taskQueue
}

// Run starts polling and blocks until ctx is canceled or the SDK reports a
// fatal error. In-flight tasks are drained for up to the shutdown timeout.
func (w *Worker) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).With("role", string(w.role), "task_queue", w.taskQueue)
	if err := w.worker.Start(); err != nil {
		return fmt.Errorf("failed to start %s worker: %w", w.role, err)
	}
	w.metrics.WorkerStarted(ctx, string(w.role), w.taskQueue)
	defer w.metrics.WorkerStopped(ctx, string(w.role), w.taskQueue)
	w.setReady(true)
	log.Info("Worker started")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown requested, draining in-flight tasks", "timeout", w.shutdownTimeout)
	case err := <-w.fatal:
		runErr = fmt.Errorf("%w: %w", ErrWorkerFatal, err)
		log.Error("Worker failed", "error", err)
	}
	w.setReady(false)
	stopStart := time.Now()
	w.worker.Stop()
	log.Info("Worker stopped", "drain_duration", time.Since(stopStart))
	return runErr
}

func (w *Worker) setReady(ready bool) {
	if w.readiness != nil {
		w.readiness.SetReady(ready)
	}
}
