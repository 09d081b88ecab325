// ABOUTME: One-shot control commands: stop a run, answer a server approval, answer a clarification
// ABOUTME: Each is a single REST call bounded by a short deadline

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
)

func newStopCmd(opts *rootOptions, st streams) *cobra.Command {
	return &cobra.Command{
		Use:   "stop SESSION_ID",
		Short: "Stop a running session on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, st)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), deadline)
			defer cancel()
			resp, err := a.control.Stop(ctx, args[0])
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("server refused to stop %s: %s", args[0], resp.Message)
			}
			fmt.Fprintf(a.io.out, "stopped %s\n", args[0])
			return nil
		},
	}
}

func newApproveCmd(opts *rootOptions, st streams) *cobra.Command {
	var (
		reject bool
		reason string
	)
	cmd := &cobra.Command{
		Use:   "approve SESSION_ID REQUEST_ID",
		Short: "Approve or reject a pending server-side tool call",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, st)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), deadline)
			defer cancel()
			d := approval.Decision{RequestID: args[1], Approved: !reject, Reason: reason}
			if err := a.control.SubmitApproval(ctx, args[0], d); err != nil {
				return err
			}
			verb := "approved"
			if reject {
				verb = "rejected"
			}
			fmt.Fprintf(a.io.out, "%s %s\n", verb, args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&reject, "reject", false, "Reject instead of approve")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason sent with the decision")
	return cmd
}

func newRespondCmd(opts *rootOptions, st streams) *cobra.Command {
	return &cobra.Command{
		Use:   "respond SESSION_ID ANSWER...",
		Short: "Answer a clarification question from the agent",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, st)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), deadline)
			defer cancel()
			return a.control.Respond(ctx, args[0], strings.Join(args[1:], " "))
		},
	}
}
