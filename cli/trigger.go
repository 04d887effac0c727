package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/compozy/graphsync/engine/graphsync"
	"github.com/compozy/graphsync/engine/worker"
	"github.com/compozy/graphsync/pkg/config"
	"github.com/spf13/cobra"
)

func TriggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Start one graph sync and wait for its result",
		Args:  cobra.NoArgs,
		RunE:  runTrigger,
	}
	cmd.Flags().Int64("update-tag", 0, "Update tag passed to the sync instead of the tool's default")
	cmd.Flags().StringSlice("sync", nil, "Requested syncs for this run, overriding the worker's list")
	cmd.Flags().Duration("timeout", 0, "Workflow execution timeout enforced by the engine (0 disables)")
	addOutputFlag(cmd)
	return cmd
}

func requestFromFlags(cmd *cobra.Command) (graphsync.Request, error) {
	var req graphsync.Request
	tag, err := cmd.Flags().GetInt64("update-tag")
	if err != nil {
		return req, fmt.Errorf("failed to get update-tag flag: %w", err)
	}
	if tag < 0 {
		return req, fmt.Errorf("update tag must not be negative, got %d", tag)
	}
	syncs, err := cmd.Flags().GetStringSlice("sync")
	if err != nil {
		return req, fmt.Errorf("failed to get sync flag: %w", err)
	}
	req.UpdateTag = tag
	req.RequestedSyncs = syncs
	return req, nil
}

func runTrigger(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	cfg := config.FromContext(ctx)

	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to get timeout flag: %w", err)
	}

	client, err := worker.NewClient(ctx, &cfg.Temporal)
	if err != nil {
		return err
	}
	defer client.Close()

	trigger := worker.NewTrigger(client, cfg.Temporal.WorkflowQueue, worker.WithExecutionTimeout(timeout))
	return executeTrigger(ctx, cmd.OutOrStdout(), trigger, req, format)
}

// executeTrigger prints the workflow ID as soon as the run is accepted, then
// blocks for the terminal result.
func executeTrigger(
	ctx context.Context,
	out io.Writer,
	trigger *worker.Trigger,
	req graphsync.Request,
	format OutputFormat,
) error {
	run, err := trigger.Start(ctx, req)
	if err != nil {
		return err
	}
	if format == OutputFormatText {
		writeStarted(out, run.GetID())
	}
	exec, err := worker.Await(ctx, run)
	if err != nil {
		return err
	}
	if format == OutputFormatJSON {
		return writeJSON(out, exec)
	}
	writeResult(out, exec)
	return nil
}
