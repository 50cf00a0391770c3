package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/scscodes/conductor/internal/api"
	"github.com/scscodes/conductor/internal/lifecycle"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serve starts the REST API plus a background sweeper that times out
overdue executions. The server shuts down gracefully on SIGINT or
SIGTERM.

Examples:
  # Start with config defaults
  conductor serve

  # Bind to all interfaces
  conductor serve --addr 0.0.0.0:8431`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := buildRuntime(runtimeOptions{watchTemplates: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		addr := serveAddr
		if addr == "" {
			addr = rt.Config.Server.Addr
		}

		server := api.NewServer(rt.Engine, rt.Lifecycle, api.Stores{
			Executions: rt.Executions,
			Steps:      rt.Steps,
			Artifacts:  rt.Artifacts,
			Findings:   rt.Findings,
			AuditLog:   rt.AuditLog,
		},
			api.WithLogger(rt.Logger.Logger),
			api.WithTemplates(rt.Templates),
			api.WithAllowedOrigins(rt.Config.Server.AllowedOrigins),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sweeper := lifecycle.NewSweeper(rt.Lifecycle,
			rt.Config.Engine.SweepIntervalDuration(), rt.Logger.Logger)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.ListenAndServe(ctx, addr)
		})
		g.Go(func() error {
			sweeper.Run(ctx)
			return nil
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"listen address (default from config, 127.0.0.1:8431)")
}
