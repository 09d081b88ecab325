// ABOUTME: send: post a chat message to a session and stream the run it starts
// ABOUTME: A new session id is minted with uuid when none is given

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bigduu/copilot-client-app-sub002/internal/client"
)

func newSendCmd(opts *rootOptions, st streams) *cobra.Command {
	var (
		sessionID  string
		agentModel string
		detach     bool
		noPrompt   bool
	)
	cmd := &cobra.Command{
		Use:   "send MESSAGE...",
		Short: "Send a message to a session and stream the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, st)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.send(cmd.Context(), client.ChatRequest{
				Message:   strings.Join(args, " "),
				SessionID: sessionID,
				Model:     agentModel,
			})
			if err != nil {
				return err
			}
			if detach {
				return nil
			}
			return a.run(cmd.Context(), []string{id}, !noPrompt && isTerminal(st.in))
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id (default: a new uuid)")
	cmd.Flags().StringVar(&agentModel, "agent-model", "", "Model the agent should use for this message")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Print the session id and return without streaming")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Never ask for approvals on stdin")
	return cmd
}

// send posts req and returns the session id the server acknowledged.
func (a *app) send(ctx context.Context, req client.ChatRequest) (string, error) {
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	resp, err := a.control.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	id := resp.SessionID
	if id == "" {
		id = req.SessionID
	}
	fmt.Fprintf(a.io.errOut, "session %s (%s)\n", id, resp.Status)
	return id, nil
}
