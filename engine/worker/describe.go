package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/compozy/graphsync/engine/graphsync"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

type ExecutionState string

const (
	StateScheduled  ExecutionState = "Scheduled"
	StateRunning    ExecutionState = "Running"
	StateCompleted  ExecutionState = "Completed"
	StateFailed     ExecutionState = "Failed"
	StateCanceled   ExecutionState = "Canceled"
	StateTerminated ExecutionState = "Terminated"
	StateTimedOut   ExecutionState = "TimedOut"
	StateUnknown    ExecutionState = "Unknown"
)

func (s ExecutionState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled, StateTerminated, StateTimedOut:
		return true
	default:
		return false
	}
}

// Description is a point-in-time view of a workflow execution.
type Description struct {
	WorkflowID      string            `json:"workflow_id"`
	RunID           string            `json:"run_id"`
	State           ExecutionState    `json:"state"`
	StartTime       time.Time         `json:"start_time"`
	CloseTime       time.Time         `json:"close_time,omitzero"`
	ActivityAttempt int32             `json:"activity_attempt,omitempty"`
	LastFailure     string            `json:"last_failure,omitempty"`
	Result          *graphsync.Result `json:"result,omitempty"`
}

// Describe reports the state of the workflow with the given ID. Completed
// executions also carry their result.
func Describe(ctx context.Context, c client.Client, workflowID string) (*Description, error) {
	resp, err := c.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to describe workflow %s: %w", workflowID, err)
	}
	info := resp.GetWorkflowExecutionInfo()
	desc := &Description{
		WorkflowID: workflowID,
		RunID:      info.GetExecution().GetRunId(),
		State:      stateFromStatus(info.GetStatus()),
	}
	if ts := info.GetStartTime(); ts != nil {
		desc.StartTime = ts.AsTime()
	}
	if ts := info.GetCloseTime(); ts != nil {
		desc.CloseTime = ts.AsTime()
	}
	if pending := resp.GetPendingActivities(); len(pending) > 0 {
		activity := pending[0]
		desc.ActivityAttempt = activity.GetAttempt()
		desc.LastFailure = activity.GetLastFailure().GetMessage()
		if desc.State == StateRunning && activity.GetState() == enumspb.PENDING_ACTIVITY_STATE_SCHEDULED {
			desc.State = StateScheduled
		}
	}
	if desc.State == StateCompleted {
		var result graphsync.Result
		if err := c.GetWorkflow(ctx, workflowID, desc.RunID).Get(ctx, &result); err != nil {
			return nil, fmt.Errorf("failed to fetch result of workflow %s: %w", workflowID, err)
		}
		desc.Result = &result
	}
	return desc, nil
}

// Cancel requests cancellation of a running workflow. The activity observes
// it through its next heartbeat.
func Cancel(ctx context.Context, c client.Client, workflowID string) error {
	if err := c.CancelWorkflow(ctx, workflowID, ""); err != nil {
		return fmt.Errorf("failed to cancel workflow %s: %w", workflowID, err)
	}
	return nil
}

func stateFromStatus(status enumspb.WorkflowExecutionStatus) ExecutionState {
	switch status {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return StateRunning
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return StateCompleted
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED:
		return StateFailed
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return StateCanceled
	case enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return StateTerminated
	case enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return StateTimedOut
	default:
		return StateUnknown
	}
}
