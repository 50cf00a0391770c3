package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/scscodes/conductor/internal/core"
)

var (
	executionsWorkflow   string
	executionsState      string
	executionsLimit      int
	executionsIncomplete bool
	executionsJSON       bool

	showSteps bool
	showLog   bool
)

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "Inspect workflow executions",
}

var executionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List executions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := buildRuntime(runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := cmd.Context()

		var execs []*core.WorkflowExecution
		if executionsIncomplete {
			execs, err = rt.Lifecycle.IncompleteExecutions(ctx, executionsWorkflow)
		} else {
			filter := core.ExecutionFilter{
				WorkflowName: executionsWorkflow,
				Limit:        executionsLimit,
			}
			if executionsState != "" {
				state := core.ExecutionState(executionsState)
				if !core.ValidExecutionState(state) {
					return core.ErrValidation("INVALID_STATE", "unknown execution state: "+executionsState)
				}
				filter.States = []core.ExecutionState{state}
			}
			execs, err = rt.Executions.ListExecutions(ctx, filter)
		}
		if err != nil {
			return err
		}

		if executionsJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(execs)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWORKFLOW\tSTATE\tCREATED\tERROR")
		for _, exec := range execs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				exec.ID, exec.WorkflowName, exec.State,
				exec.CreatedAt.Local().Format(time.RFC3339),
				truncate(exec.Error, 48))
		}
		return w.Flush()
	},
}

var executionsShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Show one execution in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := cmd.Context()
		id := core.ExecutionID(args[0])

		exec, err := rt.Executions.GetExecution(ctx, id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "execution:  %s\n", exec.ID)
		fmt.Fprintf(out, "workflow:   %s\n", exec.WorkflowName)
		fmt.Fprintf(out, "state:      %s\n", exec.State)
		if exec.ProjectID != "" {
			fmt.Fprintf(out, "project:    %s\n", exec.ProjectID)
		}
		if exec.StartedAt != nil {
			fmt.Fprintf(out, "started:    %s\n", exec.StartedAt.Local().Format(time.RFC3339))
		}
		if exec.CompletedAt != nil {
			fmt.Fprintf(out, "completed:  %s\n", exec.CompletedAt.Local().Format(time.RFC3339))
		}
		if exec.Error != "" {
			fmt.Fprintf(out, "error:      %s\n", exec.Error)
		}

		if showSteps {
			steps, err := rt.Steps.ListSteps(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "\nsteps:")
			for _, step := range steps {
				fmt.Fprintf(out, "  %-24s %-10s %s\n", step.StepName, step.State, truncate(step.Error, 60))
			}
		}

		if showLog {
			entries, err := rt.AuditLog.GetExecutionLog(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "\nlog:")
			for _, entry := range entries {
				fmt.Fprintf(out, "  %s  %-22s %s\n",
					entry.CreatedAt.Local().Format("15:04:05"), entry.Event, entry.Message)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(executionsCmd)
	executionsCmd.AddCommand(executionsListCmd)
	executionsCmd.AddCommand(executionsShowCmd)

	executionsListCmd.Flags().StringVar(&executionsWorkflow, "workflow", "", "filter by workflow name")
	executionsListCmd.Flags().StringVar(&executionsState, "state", "", "filter by state")
	executionsListCmd.Flags().IntVar(&executionsLimit, "limit", 20, "maximum rows")
	executionsListCmd.Flags().BoolVar(&executionsIncomplete, "incomplete", false, "only executions needing attention")
	executionsListCmd.Flags().BoolVar(&executionsJSON, "json", false, "print as JSON")

	executionsShowCmd.Flags().BoolVar(&showSteps, "steps", false, "include step rows")
	executionsShowCmd.Flags().BoolVar(&showLog, "log", false, "include the audit trail")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
