package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/codeshell/internal/client"
	"github.com/GriffinCanCode/codeshell/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/codeshell/internal/shared/id"
)

type rootOptions struct {
	server  string
	timeout time.Duration
}

func (r *rootOptions) client() *client.Client {
	return client.New(r.server, r.timeout)
}

// context starts a fresh trace so server logs for this invocation correlate.
func (r *rootOptions) context() (context.Context, context.CancelFunc) {
	ctx := tracing.WithTrace(context.Background(), tracing.TraceID(id.NewTraceID()), "")
	return context.WithTimeout(ctx, r.timeout)
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "shellctl",
		Short:         "Operate persistent shell sessions on a codeshell server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("SHELLCTL_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8000"
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", defaultServer, "codeshell server URL ($SHELLCTL_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")

	rootCmd.AddCommand(newExecCmd(opts))
	rootCmd.AddCommand(newStartCmd(opts))
	rootCmd.AddCommand(newKillCmd(opts))
	rootCmd.AddCommand(newSessionsCmd(opts))
	rootCmd.AddCommand(newHealthCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newExecCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec SESSION COMMAND...",
		Short: "Run a command in a session, creating it if needed",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := root.context()
			defer cancel()

			out, err := root.client().Execute(ctx, args[0], strings.Join(args[1:], " "))
			if out != nil && out.Output != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out.Output)
			}
			if err != nil {
				return err
			}
			if out.Error != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), *out.Error)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s]\n", out.CurrentPath)
			return nil
		},
	}
}

func newStartCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start [SESSION]",
		Short: "Start a session and wait until it is ready",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := root.context()
			defer cancel()

			var sessionID string
			if len(args) == 1 {
				sessionID = args[0]
			}
			info, err := root.client().StartSession(ctx, sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tpid %d\t%s\n", info.ID, info.PID, info.CurrentPath)
			return nil
		},
	}
}

func newKillCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kill SESSION...",
		Short: "Terminate sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := root.context()
			defer cancel()

			c := root.client()
			var errs []error
			for _, sessionID := range args {
				if err := c.Terminate(ctx, sessionID); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", sessionID, err))
				}
			}
			return errors.Join(errs...)
		},
	}
}

func newSessionsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions [SESSION]",
		Short: "List sessions, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := root.context()
			defer cancel()

			c := root.client()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tSTATE\tPID\tPENDING\tCWD\tLAST ACTIVE")

			if len(args) == 1 {
				info, err := c.GetSession(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", info.ID, info.State, info.PID, info.Pending, info.CurrentPath, info.LastActive.Format(time.RFC3339))
				return tw.Flush()
			}

			sessions, err := c.ListSessions(ctx)
			if err != nil {
				return err
			}
			for _, info := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", info.ID, info.State, info.PID, info.Pending, info.CurrentPath, info.LastActive.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newHealthCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := root.context()
			defer cancel()

			health, err := root.client().Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %v\n", health["status"])
			if stats, ok := health["terminal"].(map[string]interface{}); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "sessions: %v\npending: %v\nspawn breaker: %v\n",
					stats["sessions"], stats["pending"], stats["spawn_breaker"])
			}
			return nil
		},
	}
}
