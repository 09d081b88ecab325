// ABOUTME: run/attach: execute sessions on the server and stream them to the terminal
// ABOUTME: One session may prompt for approvals on a TTY; several sessions stream in parallel

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
	"github.com/bigduu/copilot-client-app-sub002/internal/log"
	"github.com/bigduu/copilot-client-app-sub002/internal/orchestrator"
	"github.com/bigduu/copilot-client-app-sub002/internal/render"
)

func newRunCmd(opts *rootOptions, st streams) *cobra.Command {
	var noPrompt bool
	cmd := &cobra.Command{
		Use:     "run SESSION_ID [SESSION_ID...]",
		Aliases: []string{"attach"},
		Short:   "Execute sessions and stream their events",
		Long: `Request execution of each session (idempotent when it is already
running) and stream its events until it completes, fails, or is interrupted.

With a single session on an interactive terminal, tool approvals are asked
on stdin. Otherwise pending approvals are listed and can be answered with
"copilot-agent approve".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, st)
			if err != nil {
				return err
			}
			defer a.close()
			return a.run(cmd.Context(), args, !noPrompt && isTerminal(st.in))
		},
	}
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Never ask for approvals on stdin")
	return cmd
}

func (a *app) run(ctx context.Context, ids []string, interactive bool) error {
	o := a.orchestrator()

	// Sessions outlive ctx so an interrupt goes through Stop, which also
	// tells the server.
	stopAll := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), deadline)
		defer cancel()
		for _, id := range ids {
			if err := o.Stop(sctx, id); err != nil && !errors.Is(err, orchestrator.ErrNoSession) {
				log.Warn("copilot-agent: %v", err)
			}
		}
	})
	defer stopAll()
	base := context.WithoutCancel(ctx)

	if len(ids) == 1 {
		out, err := a.runOne(base, o, ids[0], interactive)
		if err != nil {
			return err
		}
		return outcomeError(out)
	}

	w := &lockedWriter{w: a.io.out}
	outs, err := o.RunAll(base, ids, func(string) orchestrator.Sink {
		return render.NewPrinter(w, render.Options{Verbose: a.verbose})
	})
	if err != nil {
		return err
	}
	var errs []error
	for _, out := range outs {
		if err := outcomeError(out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) runOne(ctx context.Context, o *orchestrator.Orchestrator, id string, interactive bool) (orchestrator.Outcome, error) {
	var approvals chan approval.Proposal
	popts := render.Options{}
	if interactive {
		approvals = make(chan approval.Proposal, 16)
		popts.OnApproval = func(p approval.Proposal) {
			select {
			case approvals <- p:
			default:
				log.Warn("copilot-agent: approval queue full, %s waits for its timeout", p.ToolName)
			}
		}
	}

	s, err := o.Open(ctx, id, a.printer(popts))
	if err != nil {
		return orchestrator.Outcome{}, err
	}
	if interactive {
		go a.promptLoop(o, id, approvals, s.Done())
	}
	return s.Wait(), nil
}

// promptLoop asks for each proposal in arrival order until the session ends.
func (a *app) promptLoop(o *orchestrator.Orchestrator, id string, approvals <-chan approval.Proposal, done <-chan struct{}) {
	p := render.NewPrompter(a.io.in, a.io.errOut)
	for {
		select {
		case <-done:
			return
		case prop := <-approvals:
			d, err := p.Ask(prop)
			if err != nil {
				log.Debug("copilot-agent: approval prompt closed: %v", err)
				return
			}
			if err := o.Decide(id, d); err != nil {
				fmt.Fprintf(a.io.errOut, "decision not applied: %v\n", err)
			}
		}
	}
}

// outcomeError maps a failed session to a command error.
func outcomeError(out orchestrator.Outcome) error {
	if out.Status != orchestrator.StatusError {
		return nil
	}
	return fmt.Errorf("session %s: %w", out.SessionID, out.Err)
}

// lockedWriter serializes writes from parallel sessions.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
