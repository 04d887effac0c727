package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compozy/graphsync/engine/core"
	"github.com/compozy/graphsync/engine/graphsync"
	"github.com/compozy/graphsync/pkg/logger"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

var (
	ErrStartWorkflow = errors.New("failed to start workflow")
	ErrAwaitResult   = errors.New("failed to await workflow result")
)

// Execution identifies a finished workflow run and carries its result.
type Execution struct {
	WorkflowID string            `json:"workflow_id"`
	RunID      string            `json:"run_id"`
	Result     *graphsync.Result `json:"result"`
}

// Trigger starts graph sync workflows and waits for their result.
type Trigger struct {
	client           client.Client
	workflowQueue    string
	executionTimeout time.Duration
	newID            func() (core.ID, error)
}

type TriggerOption func(*Trigger)

// WithExecutionTimeout bounds the whole workflow execution on the engine side.
func WithExecutionTimeout(d time.Duration) TriggerOption {
	return func(t *Trigger) { t.executionTimeout = d }
}

func NewTrigger(c client.Client, workflowQueue string, opts ...TriggerOption) *Trigger {
	if workflowQueue == "" {
		workflowQueue = graphsync.DefaultWorkflowQueue
	}
	t := &Trigger{
		client:        c,
		workflowQueue: workflowQueue,
		newID:         core.NewID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start submits a new workflow execution under a freshly generated ID.
func (t *Trigger) Start(ctx context.Context, req graphsync.Request) (client.WorkflowRun, error) {
	id, err := t.newID()
	if err != nil {
		return nil, fmt.Errorf("%w: generate id: %w", ErrStartWorkflow, err)
	}
	options := client.StartWorkflowOptions{
		ID:                       id.String(),
		TaskQueue:                t.workflowQueue,
		WorkflowExecutionTimeout: t.executionTimeout,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	run, err := t.client.ExecuteWorkflow(ctx, options, graphsync.WorkflowName, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartWorkflow, err)
	}
	logger.FromContext(ctx).Info("Workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"task_queue", t.workflowQueue,
	)
	return run, nil
}

// Run starts a workflow and blocks until it reaches a terminal state.
func (t *Trigger) Run(ctx context.Context, req graphsync.Request) (*Execution, error) {
	run, err := t.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return Await(ctx, run)
}

// Await waits for run to finish and decodes its result.
func Await(ctx context.Context, run client.WorkflowRun) (*Execution, error) {
	exec := &Execution{WorkflowID: run.GetID(), RunID: run.GetRunID()}
	var result graphsync.Result
	if err := run.Get(ctx, &result); err != nil {
		return exec, fmt.Errorf("%w %s: %w", ErrAwaitResult, exec.WorkflowID, err)
	}
	exec.Result = &result
	return exec, nil
}
