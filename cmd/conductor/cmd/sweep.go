package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scscodes/conductor/internal/lifecycle"
)

var sweepInterval time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark overdue executions as timed out",
	Long: `Sweep scans running executions and moves any whose deadline has passed
into the timeout state. Without --interval it performs a single sweep
and exits; with --interval it keeps sweeping until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := buildRuntime(runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if sweepInterval > 0 {
			sweeper := lifecycle.NewSweeper(rt.Lifecycle, sweepInterval, rt.Logger.Logger)
			sweeper.Run(ctx)
			return nil
		}

		timedOut, err := rt.Lifecycle.CheckTimeouts(ctx)
		if err != nil {
			return err
		}
		if len(timedOut) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no overdue executions")
			return nil
		}
		for _, exec := range timedOut {
			fmt.Fprintf(cmd.OutOrStdout(), "timed out: %s (workflow %s)\n", exec.ID, exec.WorkflowName)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().DurationVar(&sweepInterval, "interval", 0,
		"sweep repeatedly at this interval (e.g. 30s); 0 sweeps once")
}
