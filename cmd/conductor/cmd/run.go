package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scscodes/conductor/internal/core"
	"github.com/scscodes/conductor/internal/engine"
	"github.com/scscodes/conductor/internal/events"
)

var (
	runReason    string
	runProject   string
	runTimeoutMs int64
	runJSON      bool
	runMetadata  []string
)

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Run a workflow to completion",
	Long: `Run compiles the named workflow template, creates a persisted
execution, and walks its levels until the workflow completes, fails, or
times out. Step progress is streamed to stdout as it happens.

Examples:
  # Run the builtin feature workflow
  conductor run feature

  # Run with a reason and project scope
  conductor run feature --reason "ship search" --project proj-1234`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runReason, "reason", "", "why this execution was started")
	runCmd.Flags().StringVar(&runProject, "project", "", "project ID to scope the execution to")
	runCmd.Flags().Int64Var(&runTimeoutMs, "timeout-ms", 0, "total workflow timeout in milliseconds (0 = policy default)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the final result as JSON")
	runCmd.Flags().StringArrayVar(&runMetadata, "meta", nil, "execution metadata as key=value (repeatable)")
}

func runRun(cmd *cobra.Command, args []string) error {
	workflow := args[0]

	metadata, err := parseMetadata(runMetadata)
	if err != nil {
		return err
	}

	rt, err := buildRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress sync.WaitGroup
	if !quiet && !runJSON {
		ch := rt.Bus.Subscribe(
			events.TypeStepStarted,
			events.TypeStepCompleted,
			events.TypeStepFailed,
			events.TypeStepRetrying,
		)
		progress.Add(1)
		go func() {
			defer progress.Done()
			printProgress(cmd, ch)
		}()
		defer progress.Wait()
		defer rt.Bus.Unsubscribe(ch)
	}

	result, runErr := rt.Engine.Execute(ctx, workflow, engine.StartOptions{
		Reason:    runReason,
		ProjectID: runProject,
		Metadata:  metadata,
		TimeoutMs: runTimeoutMs,
	})
	if runErr != nil {
		return runErr
	}

	if runJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nexecution %s %s\n", result.Execution.ID, result.Execution.State)
	if result.Output != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s (confidence %.2f)\n", result.Output.Summary, result.Output.Confidence)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  duration: %s\n", result.Duration)
	return nil
}

func printProgress(cmd *cobra.Command, ch <-chan events.Event) {
	out := cmd.OutOrStdout()
	for ev := range ch {
		switch e := ev.(type) {
		case events.StepStartedEvent:
			fmt.Fprintf(out, "▸ %s (level %d, attempt %d)\n", e.StepName, e.Level, e.Attempt)
		case events.StepCompletedEvent:
			fmt.Fprintf(out, "✓ %s (%.2f confidence, %s)\n", e.StepName, e.Confidence, e.Duration)
		case events.StepRetryingEvent:
			fmt.Fprintf(out, "↻ %s retrying (attempt %d after %s): %s\n", e.StepName, e.Attempt, e.Backoff, e.Error)
		case events.StepFailedEvent:
			fmt.Fprintf(out, "✗ %s failed after %d attempt(s): %s\n", e.StepName, e.Attempts, e.Error)
		}
	}
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, core.ErrValidation("INVALID_METADATA", fmt.Sprintf("metadata must be key=value, got %q", pair))
		}
		metadata[key] = value
	}
	return metadata, nil
}
