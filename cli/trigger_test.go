package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/compozy/graphsync/engine/graphsync"
	"github.com/compozy/graphsync/engine/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/mocks"
)

func mockRun(id string, result *graphsync.Result, err error) *mocks.WorkflowRun {
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return(id)
	run.On("GetRunID").Return("run-1")
	run.On("Get", mock.Anything, mock.AnythingOfType("*graphsync.Result")).
		Run(func(args mock.Arguments) {
			if result != nil {
				*args.Get(1).(*graphsync.Result) = *result
			}
		}).
		Return(err)
	return run
}

func TestExecuteTrigger(t *testing.T) {
	t.Run("Should print the workflow id and the legacy result line", func(t *testing.T) {
		c := &mocks.Client{}
		c.On("ExecuteWorkflow", mock.Anything, mock.Anything, graphsync.WorkflowName, graphsync.Request{}).
			Return(mockRun("wf-1", graphsync.Succeeded(0, time.Second), nil), nil).Once()

		var out bytes.Buffer
		err := executeTrigger(t.Context(), &out, worker.NewTrigger(c, "workflow-queue"), graphsync.Request{}, OutputFormatText)
		require.NoError(t, err)
		assert.Equal(t, "Workflow ID: wf-1\nResult: { result: '0' }\n", out.String())
		c.AssertExpectations(t)
	})
	t.Run("Should print error text as the result when the sync failed", func(t *testing.T) {
		c := &mocks.Client{}
		failed := graphsync.Failed(graphsync.KindExit, "exit status 2", 2, time.Second)
		c.On("ExecuteWorkflow", mock.Anything, mock.Anything, graphsync.WorkflowName, mock.Anything).
			Return(mockRun("wf-2", failed, nil), nil).Once()

		var out bytes.Buffer
		err := executeTrigger(t.Context(), &out, worker.NewTrigger(c, ""), graphsync.Request{}, OutputFormatText)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Result: { result: 'exit status 2' }")
	})
	t.Run("Should emit a single JSON document", func(t *testing.T) {
		c := &mocks.Client{}
		req := graphsync.Request{UpdateTag: 42, RequestedSyncs: []string{"ec2"}}
		c.On("ExecuteWorkflow", mock.Anything, mock.Anything, graphsync.WorkflowName, req).
			Return(mockRun("wf-3", graphsync.Succeeded(0, time.Second), nil), nil).Once()

		var out bytes.Buffer
		err := executeTrigger(t.Context(), &out, worker.NewTrigger(c, ""), req, OutputFormatJSON)
		require.NoError(t, err)
		var exec worker.Execution
		require.NoError(t, json.Unmarshal(out.Bytes(), &exec))
		assert.Equal(t, "wf-3", exec.WorkflowID)
		require.NotNil(t, exec.Result)
		assert.Equal(t, graphsync.SuccessSentinel, exec.Result.Result)
	})
	t.Run("Should return start failures without printing", func(t *testing.T) {
		c := &mocks.Client{}
		c.On("ExecuteWorkflow", mock.Anything, mock.Anything, graphsync.WorkflowName, mock.Anything).
			Return(nil, errors.New("connection refused")).Once()

		var out bytes.Buffer
		err := executeTrigger(t.Context(), &out, worker.NewTrigger(c, ""), graphsync.Request{}, OutputFormatText)
		require.ErrorIs(t, err, worker.ErrStartWorkflow)
		assert.Empty(t, out.String())
	})
	t.Run("Should return await failures after printing the id", func(t *testing.T) {
		c := &mocks.Client{}
		c.On("ExecuteWorkflow", mock.Anything, mock.Anything, graphsync.WorkflowName, mock.Anything).
			Return(mockRun("wf-4", nil, errors.New("workflow timeout")), nil).Once()

		var out bytes.Buffer
		err := executeTrigger(t.Context(), &out, worker.NewTrigger(c, ""), graphsync.Request{}, OutputFormatText)
		require.ErrorIs(t, err, worker.ErrAwaitResult)
		assert.Equal(t, "Workflow ID: wf-4\n", out.String())
	})
}

func TestRequestFromFlags(t *testing.T) {
	t.Run("Should build the request from flags", func(t *testing.T) {
		cmd := TriggerCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--update-tag=17", "--sync=ec2,s3"}))
		req, err := requestFromFlags(cmd)
		require.NoError(t, err)
		assert.Equal(t, graphsync.Request{UpdateTag: 17, RequestedSyncs: []string{"ec2", "s3"}}, req)
	})
	t.Run("Should return a zero request without flags", func(t *testing.T) {
		req, err := requestFromFlags(TriggerCmd())
		require.NoError(t, err)
		assert.True(t, req.IsZero())
	})
	t.Run("Should reject a negative update tag", func(t *testing.T) {
		cmd := TriggerCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--update-tag=-1"}))
		_, err := requestFromFlags(cmd)
		assert.Error(t, err)
	})
}

func TestOutputFormat(t *testing.T) {
	t.Run("Should reject unknown formats", func(t *testing.T) {
		cmd := TriggerCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--output=yaml"}))
		_, err := outputFormat(cmd)
		assert.Error(t, err)
	})
	t.Run("Should default to text", func(t *testing.T) {
		format, err := outputFormat(TriggerCmd())
		require.NoError(t, err)
		assert.Equal(t, OutputFormatText, format)
	})
}
