package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/compozy/graphsync/engine/worker"
	"github.com/spf13/cobra"
)

type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", string(OutputFormatText), "Output format (text or json)")
}

func outputFormat(cmd *cobra.Command) (OutputFormat, error) {
	value, err := cmd.Flags().GetString("output")
	if err != nil {
		return "", fmt.Errorf("failed to get output flag: %w", err)
	}
	switch format := OutputFormat(value); format {
	case OutputFormatText, OutputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", value)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func writeStarted(w io.Writer, workflowID string) {
	fmt.Fprintf(w, "Workflow ID: %s\n", workflowID)
}

func writeResult(w io.Writer, exec *worker.Execution) {
	fmt.Fprintf(w, "Result: %s\n", exec.Result)
}

func writeDescription(w io.Writer, desc *worker.Description) {
	fmt.Fprintf(w, "Workflow ID: %s\n", desc.WorkflowID)
	fmt.Fprintf(w, "Run ID: %s\n", desc.RunID)
	fmt.Fprintf(w, "State: %s\n", desc.State)
	if !desc.StartTime.IsZero() {
		fmt.Fprintf(w, "Started: %s\n", desc.StartTime.Format(time.RFC3339))
	}
	if !desc.CloseTime.IsZero() {
		fmt.Fprintf(w, "Closed: %s\n", desc.CloseTime.Format(time.RFC3339))
	}
	if desc.ActivityAttempt > 0 {
		fmt.Fprintf(w, "Activity attempt: %d\n", desc.ActivityAttempt)
	}
	if desc.LastFailure != "" {
		fmt.Fprintf(w, "Last failure: %s\n", desc.LastFailure)
	}
	if desc.Result != nil {
		fmt.Fprintf(w, "Result: %s\n", desc.Result)
	}
}
