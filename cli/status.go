package cli

import (
	"fmt"

	"github.com/compozy/graphsync/engine/worker"
	"github.com/compozy/graphsync/pkg/config"
	"github.com/spf13/cobra"
)

func StatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <workflow-id>",
		Short: "Show the state of a graph sync workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client, err := worker.NewClient(ctx, &config.FromContext(ctx).Temporal)
			if err != nil {
				return err
			}
			defer client.Close()
			desc, err := worker.Describe(ctx, client, args[0])
			if err != nil {
				return err
			}
			if format == OutputFormatJSON {
				return writeJSON(cmd.OutOrStdout(), desc)
			}
			writeDescription(cmd.OutOrStdout(), desc)
			return nil
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func CancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <workflow-id>",
		Short: "Request cancellation of a running graph sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := worker.NewClient(ctx, &config.FromContext(ctx).Temporal)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := worker.Cancel(ctx, client, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for workflow %s\n", args[0])
			return nil
		},
	}
}
