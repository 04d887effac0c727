package interceptor

import (
	"context"
	"errors"
	"time"

	"github.com/compozy/graphsync/engine/infra/monitoring/metrics"
	"github.com/compozy/graphsync/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	resultCompleted = "completed"
	resultCanceled  = "canceled"
	resultTimeout   = "timeout"
	resultFailed    = "failed"
)

// outcomeReporter is implemented by results that carry their own status even
// when the handler returned no error.
type outcomeReporter interface {
	OK() bool
}

type instruments struct {
	workflowStarted   metric.Int64Counter
	workflowCompleted metric.Int64Counter
	workflowFailed    metric.Int64Counter
	workflowDuration  metric.Float64Histogram
	activityStarted   metric.Int64Counter
	activityCompleted metric.Int64Counter
	activityFailed    metric.Int64Counter
	activityDuration  metric.Float64Histogram
	workersRunning    metric.Int64UpDownCounter
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	var (
		ins  instruments
		errs []error
	)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(
			metrics.MetricNameWithSubsystem("temporal", name),
			metric.WithDescription(desc),
		)
		errs = append(errs, err)
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(
			metrics.MetricNameWithSubsystem("temporal", name),
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(metrics.SyncDurationBuckets...),
		)
		errs = append(errs, err)
		return h
	}
	ins.workflowStarted = counter("workflow_started_total", "Started workflows")
	ins.workflowCompleted = counter("workflow_completed_total", "Completed workflows")
	ins.workflowFailed = counter("workflow_failed_total", "Failed workflows")
	ins.workflowDuration = histogram("workflow_duration_seconds", "Workflow execution time")
	ins.activityStarted = counter("activity_started_total", "Started activity attempts")
	ins.activityCompleted = counter("activity_completed_total", "Completed activity attempts")
	ins.activityFailed = counter("activity_failed_total", "Failed activity attempts")
	ins.activityDuration = histogram("activity_duration_seconds", "Activity attempt execution time")
	running, err := meter.Int64UpDownCounter(
		metrics.MetricNameWithSubsystem("temporal", "workers_running_total"),
		metric.WithDescription("Currently running workers"),
	)
	errs = append(errs, err)
	ins.workersRunning = running
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &ins, nil
}

// WorkerMetrics is a Temporal worker interceptor that records workflow and
// activity executions. The zero value records nothing.
type WorkerMetrics struct {
	interceptor.WorkerInterceptorBase
	ins     *instruments
	baseCtx context.Context
}

// TemporalMetrics creates a worker interceptor backed by meter. A nil meter or
// an instrument creation failure yields an interceptor that only passes calls through.
func TemporalMetrics(ctx context.Context, meter metric.Meter) *WorkerMetrics {
	log := logger.FromContext(ctx)
	m := &WorkerMetrics{baseCtx: context.WithoutCancel(ctx)}
	if meter == nil {
		log.Warn("TemporalMetrics called with nil meter, returning no-op interceptor")
		return m
	}
	ins, err := newInstruments(meter)
	if err != nil {
		log.Error("Failed to create temporal metric instruments", "error", err, "component", "temporal_metrics")
		return m
	}
	m.ins = ins
	return m
}

// WorkerStarted increments the running workers counter for role.
func (m *WorkerMetrics) WorkerStarted(ctx context.Context, role, taskQueue string) {
	if m == nil || m.ins == nil {
		return
	}
	m.ins.workersRunning.Add(context.WithoutCancel(ctx), 1, workerAttrs(role, taskQueue))
}

// WorkerStopped decrements the running workers counter for role.
func (m *WorkerMetrics) WorkerStopped(ctx context.Context, role, taskQueue string) {
	if m == nil || m.ins == nil {
		return
	}
	m.ins.workersRunning.Add(context.WithoutCancel(ctx), -1, workerAttrs(role, taskQueue))
}

func workerAttrs(role, taskQueue string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("task_queue", taskQueue),
	)
}

// InterceptWorkflow wraps workflow executions with metrics collection.
func (m *WorkerMetrics) InterceptWorkflow(
	_ workflow.Context,
	next interceptor.WorkflowInboundInterceptor,
) interceptor.WorkflowInboundInterceptor {
	return &workflowInboundInterceptor{
		WorkflowInboundInterceptorBase: interceptor.WorkflowInboundInterceptorBase{Next: next},
		ins:                            m.ins,
		baseCtx:                        m.baseCtx,
	}
}

// InterceptActivity wraps activity executions with metrics collection.
func (m *WorkerMetrics) InterceptActivity(
	_ context.Context,
	next interceptor.ActivityInboundInterceptor,
) interceptor.ActivityInboundInterceptor {
	return &activityInboundInterceptor{
		ActivityInboundInterceptorBase: interceptor.ActivityInboundInterceptorBase{Next: next},
		ins:                            m.ins,
	}
}

type workflowInboundInterceptor struct {
	interceptor.WorkflowInboundInterceptorBase
	ins     *instruments
	baseCtx context.Context
}

// ExecuteWorkflow records start, outcome and duration of a workflow run.
// Replayed executions are not counted again.
func (w *workflowInboundInterceptor) ExecuteWorkflow(
	ctx workflow.Context,
	in *interceptor.ExecuteWorkflowInput,
) (any, error) {
	if w.ins == nil || workflow.IsReplaying(ctx) {
		return w.Next.ExecuteWorkflow(ctx, in)
	}
	info := workflow.GetInfo(ctx)
	workflowType := info.WorkflowType.Name
	start := workflow.Now(ctx)
	w.ins.workflowStarted.Add(w.baseCtx, 1, metric.WithAttributes(attribute.String("workflow_type", workflowType)))
	result, err := w.Next.ExecuteWorkflow(ctx, in)
	duration := workflow.Now(ctx).Sub(start).Seconds()
	label := classifyError(err)
	attrs := metric.WithAttributes(
		attribute.String("workflow_type", workflowType),
		attribute.String("result", label),
		attribute.String("outcome", outcomeOf(result, err)),
	)
	w.ins.workflowDuration.Record(w.baseCtx, duration, attrs)
	if err != nil {
		w.ins.workflowFailed.Add(w.baseCtx, 1, attrs)
		logger.FromContext(w.baseCtx).Debug(
			"Workflow finished with error",
			"workflow_type", workflowType,
			"workflow_id", info.WorkflowExecution.ID,
			"result", label,
		)
		return result, err
	}
	w.ins.workflowCompleted.Add(w.baseCtx, 1, attrs)
	return result, nil
}

type activityInboundInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
	ins *instruments
}

// ExecuteActivity records start, outcome and duration of an activity attempt.
func (a *activityInboundInterceptor) ExecuteActivity(
	ctx context.Context,
	in *interceptor.ExecuteActivityInput,
) (any, error) {
	if a.ins == nil {
		return a.Next.ExecuteActivity(ctx, in)
	}
	info := activity.GetInfo(ctx)
	activityType := info.ActivityType.Name
	otelCtx := context.WithoutCancel(ctx)
	a.ins.activityStarted.Add(otelCtx, 1, metric.WithAttributes(
		attribute.String("activity_type", activityType),
		attribute.String("task_queue", info.TaskQueue),
	))
	start := time.Now()
	result, err := a.Next.ExecuteActivity(ctx, in)
	attrs := metric.WithAttributes(
		attribute.String("activity_type", activityType),
		attribute.String("task_queue", info.TaskQueue),
		attribute.String("result", classifyError(err)),
		attribute.String("outcome", outcomeOf(result, err)),
	)
	a.ins.activityDuration.Record(otelCtx, time.Since(start).Seconds(), attrs)
	if err != nil {
		a.ins.activityFailed.Add(otelCtx, 1, attrs)
		return result, err
	}
	a.ins.activityCompleted.Add(otelCtx, 1, attrs)
	return result, nil
}

// classifyError maps handler errors to the result label.
func classifyError(err error) string {
	switch {
	case err == nil:
		return resultCompleted
	case temporal.IsCanceledError(err), errors.Is(err, workflow.ErrCanceled), errors.Is(err, context.Canceled):
		return resultCanceled
	case temporal.IsTimeoutError(err), errors.Is(err, context.DeadlineExceeded):
		return resultTimeout
	default:
		return resultFailed
	}
}

// outcomeOf reports "ok" or "error", looking inside results that were
// returned as data rather than as errors.
func outcomeOf(result any, err error) string {
	if err != nil {
		return "error"
	}
	if r, ok := result.(outcomeReporter); ok && !r.OK() {
		return "error"
	}
	return "ok"
}
