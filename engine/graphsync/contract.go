// Package graphsync holds the contract shared by the workflow and activity
// layers: registered names, task queues, timeouts and the result envelope.
package graphsync

import "time"

const (
	WorkflowName = "GraphSyncWorkflow"
	ActivityName = "RunGraphSync"

	DefaultWorkflowQueue = "workflow-queue"
	DefaultActivityQueue = "activity-queue"

	DefaultStartToCloseTimeout = time.Hour

	// SuccessSentinel is the legacy result payload for a zero exit status.
	SuccessSentinel = "0"
)

// Request carries optional per-run overrides from the trigger to the
// activity. The zero value means "use the worker's static options".
type Request struct {
	UpdateTag      int64    `json:"update_tag,omitempty"`
	RequestedSyncs []string `json:"requested_syncs,omitempty"`
}

func (r Request) IsZero() bool {
	return r.UpdateTag == 0 && len(r.RequestedSyncs) == 0
}
