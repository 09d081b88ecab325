// ABOUTME: invoke: run slash commands through the local tool pipeline
// ABOUTME: Several commands run as one batch; approvals are asked on a TTY or refused

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
	"github.com/bigduu/copilot-client-app-sub002/internal/render"
	"github.com/bigduu/copilot-client-app-sub002/internal/toolflow"
)

// errToolsFailed is returned when any invoked call did not succeed.
var errToolsFailed = errors.New("one or more tool calls failed")

func newInvokeCmd(opts *rootOptions, st streams) *cobra.Command {
	var noPrompt bool
	cmd := &cobra.Command{
		Use:   `invoke "/TOOL DESCRIPTION" [...]`,
		Short: "Run tools locally from slash commands",
		Example: `  copilot-agent invoke "/read README.md"
  copilot-agent invoke "/search TODO" "/ls internal"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, st)
			if err != nil {
				return err
			}
			defer a.close()
			return a.invoke(cmd.Context(), args, !noPrompt && isTerminal(st.in))
		},
	}
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Reject calls that need approval instead of asking")
	return cmd
}

func (a *app) invoke(ctx context.Context, inputs []string, interactive bool) error {
	gates := approval.NewSet(a.cfg.ApprovalTimeout)
	defer gates.Close(approval.ReasonCancelled)

	p := a.printer(render.Options{})
	prompter := render.NewPrompter(a.io.in, a.io.errOut)
	h := toolflow.Hooks{
		Gates: gates,
		OnProposal: func(prop approval.Proposal) {
			d := approval.Decision{RequestID: prop.Key, Reason: "not an interactive terminal"}
			if interactive {
				var err error
				if d, err = prompter.Ask(prop); err != nil {
					d = approval.Decision{RequestID: prop.Key, Reason: err.Error()}
				}
			}
			if err := gates.Decide(d); err != nil {
				fmt.Fprintf(a.io.errOut, "decision not applied: %v\n", err)
			}
		},
	}

	var outs []toolflow.Outcome
	if len(inputs) == 1 {
		out, ok := a.flow.Invoke(ctx, inputs[0], h)
		if !ok {
			return fmt.Errorf("%q is not a tool command (try \"/%s ...\")", inputs[0], firstTool(a))
		}
		outs = []toolflow.Outcome{out}
	} else {
		outs = a.flow.InvokeBatch(ctx, inputs, h)
	}

	failed := false
	for _, out := range outs {
		p.Result(out)
		if out.Err != nil {
			failed = true
		}
	}
	if failed {
		return errToolsFailed
	}
	return nil
}

func firstTool(a *app) string {
	if names := a.registry.Names(); len(names) > 0 {
		return names[0]
	}
	return "tool"
}
