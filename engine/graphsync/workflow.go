package graphsync

import (
	"time"

	"github.com/compozy/graphsync/pkg/config"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// -----------------------------------------------------------------------------
// Workflow Definition
// -----------------------------------------------------------------------------

// Definition runs a single graph sync activity on the activity queue and
// returns its result untouched.
type Definition struct {
	ActivityQueue       string
	StartToCloseTimeout time.Duration
	HeartbeatTimeout    time.Duration
	MaxAttempts         int32
}

func NewDefinition(cfg *config.Config) *Definition {
	return &Definition{
		ActivityQueue:       cfg.Temporal.ActivityQueue,
		StartToCloseTimeout: cfg.Sync.StartToCloseTimeout,
		HeartbeatTimeout:    cfg.Sync.HeartbeatTimeout,
		MaxAttempts:         cfg.Sync.MaxAttempts,
	}
}

func (d *Definition) ActivityOptions() workflow.ActivityOptions {
	queue := d.ActivityQueue
	if queue == "" {
		queue = DefaultActivityQueue
	}
	timeout := d.StartToCloseTimeout
	if timeout <= 0 {
		timeout = DefaultStartToCloseTimeout
	}
	attempts := d.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return workflow.ActivityOptions{
		TaskQueue:           queue,
		StartToCloseTimeout: timeout,
		HeartbeatTimeout:    d.HeartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Minute,
			MaximumAttempts:    attempts,
			NonRetryableErrorTypes: []string{
				string(KindSpawn),
				string(KindConfig),
				string(KindCanceled),
			},
		},
	}
}

func (d *Definition) Run(ctx workflow.Context, req Request) (*Result, error) {
	logger := workflow.GetLogger(ctx)
	opts := d.ActivityOptions()
	logger.Info("Starting graph sync workflow",
		"activity_queue", opts.TaskQueue,
		"start_to_close", opts.StartToCloseTimeout,
	)
	ctx = workflow.WithActivityOptions(ctx, opts)

	var result Result
	if err := workflow.ExecuteActivity(ctx, ActivityName, req).Get(ctx, &result); err != nil {
		logger.Error("Graph sync activity did not complete", "error", err)
		return nil, err
	}
	logger.Info("Graph sync workflow completed", "status", result.Status)
	return &result, nil
}
