package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scscodes/conductor/internal/core"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <execution-id>",
	Short: "Resume a timed-out execution",
	Long: `Resume moves an execution from the timeout state back to running with
a freshly computed deadline. Only timed-out executions can be resumed;
anything else is rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		exec, err := rt.Engine.Resume(ctx, core.ExecutionID(args[0]))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "execution %s resumed (workflow %s)\n", exec.ID, exec.WorkflowName)
		if exec.TimeoutAt != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  new deadline: %s\n", exec.TimeoutAt.Format("2006-01-02 15:04:05 MST"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
