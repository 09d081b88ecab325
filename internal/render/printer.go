// ABOUTME: Line-oriented terminal sink for a session: streamed text, tool activity, todos, results
// ABOUTME: Approval requests are handed to a callback so prompting never blocks the read loop

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
	"github.com/bigduu/copilot-client-app-sub002/internal/event"
	"github.com/bigduu/copilot-client-app-sub002/internal/orchestrator"
	"github.com/bigduu/copilot-client-app-sub002/internal/toolflow"
	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
	"github.com/bigduu/copilot-client-app-sub002/internal/tracker"
)

const defaultWidth = 80

// Options configure a Printer.
type Options struct {
	// Width wraps narrative markdown; 0 means 80 columns.
	Width int
	// Color enables styled markdown. Styles detect color from the writer.
	Color bool
	// Verbose prints todo evaluation and budget events.
	Verbose bool
	// OnApproval receives proposals waiting for a user decision.
	OnApproval func(approval.Proposal)
	// OnDone receives the session outcome after it is printed.
	OnDone func(orchestrator.Outcome)
}

// Printer writes a session to a terminal. It implements orchestrator.Sink.
type Printer struct {
	w      io.Writer
	opts   Options
	styles Styles
	md     *Markdown

	// midLine is true while streamed text has not ended with a newline.
	midLine bool
}

var _ orchestrator.Sink = (*Printer)(nil)

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, opts Options) *Printer {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	return &Printer{w: w, opts: opts, styles: NewStyles(w), md: NewMarkdown(opts.Color)}
}

func (p *Printer) line(format string, args ...any) {
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) OnToken(e event.Token) {
	if e.Content == "" {
		return
	}
	fmt.Fprint(p.w, e.Content)
	p.midLine = !strings.HasSuffix(e.Content, "\n")
}

func (p *Printer) OnToolStart(e event.ToolStart) {
	args := ""
	if len(e.Arguments) > 0 {
		args = " " + p.styles.Dim.Render(string(e.Arguments))
	}
	p.line("%s %s%s", p.styles.Tool.Render("▶ "+e.ToolName), p.styles.Dim.Render("["+e.ToolCallID+"]"), args)
}

func (p *Printer) OnToolComplete(e event.ToolComplete) {
	mark := p.styles.Success.Render("✓")
	if !e.Result.Success {
		mark = p.styles.Error.Render("✗")
	}
	p.line("%s %s", mark, p.styles.Dim.Render("["+e.ToolCallID+"]"))
	if out := strings.TrimRight(e.Result.Result, "\n"); out != "" {
		p.line("%s", p.styles.Result.Render(out))
	}
}

func (p *Printer) OnToolError(e event.ToolError) {
	p.line("%s %s %s", p.styles.Error.Render("✗"), p.styles.Dim.Render("["+e.ToolCallID+"]"), e.Error)
}

func (p *Printer) OnToolApprovalRequired(e event.ToolApprovalRequired) {
	p.line("%s %s(%s)", p.styles.Approval.Render("? approval required:"), e.ToolName, tools.Values(e.Parameters).String())
}

func (p *Printer) OnNeedClarification(e event.NeedClarification) {
	p.line("%s %s", p.styles.Approval.Render("?"), e.Question)
	for i, o := range e.Options {
		p.line("  %d. %s", i+1, o)
	}
}

func (p *Printer) OnTodoListUpdated(e event.TodoListUpdated) {
	p.line("%s", strings.TrimRight(tracker.FormatList(e.TodoList), "\n"))
}

func (p *Printer) OnTodoItemProgress(e event.TodoItemProgress) {
	msg := fmt.Sprintf("todo %s → %s", e.ItemID, e.Status)
	if e.Notes != "" {
		msg += ": " + e.Notes
	}
	p.line("%s", p.styles.Dim.Render(msg))
}

func (p *Printer) OnTodoListCompleted(e event.TodoListCompleted) {
	p.line("%s", p.styles.Success.Render(fmt.Sprintf("All tasks completed (%d rounds, %d tool calls)", e.TotalRounds, e.TotalToolCalls)))
}

func (p *Printer) OnTodoEvaluationStarted(e event.TodoEvaluationStarted) {
	if p.opts.Verbose {
		p.line("%s", p.styles.Dim.Render(fmt.Sprintf("evaluating %d task(s)", e.ItemsCount)))
	}
}

func (p *Printer) OnTodoEvaluationCompleted(e event.TodoEvaluationCompleted) {
	if p.opts.Verbose {
		p.line("%s", p.styles.Dim.Render(fmt.Sprintf("evaluation done: %d update(s)", e.UpdatesCount)))
	}
}

func (p *Printer) OnTokenBudgetUpdated(e event.TokenBudgetUpdated) {
	u := e.Usage
	if !p.opts.Verbose && !u.TruncationOccurred {
		return
	}
	msg := fmt.Sprintf("context %.0f%% (%d/%d tokens)", u.UsagePercentage(), u.TotalTokens, u.BudgetLimit)
	if u.TruncationOccurred {
		msg += fmt.Sprintf(", %d segment(s) dropped", u.SegmentsRemoved)
		p.line("%s", p.styles.Warning.Render(msg))
		return
	}
	p.line("%s", p.styles.Dim.Render(msg))
}

func (p *Printer) OnContextSummarized(e event.ContextSummarized) {
	p.line("%s", p.styles.Dim.Render(fmt.Sprintf("summarized %d message(s), saved %d tokens", e.MessagesSummarized, e.TokensSaved)))
}

func (p *Printer) OnComplete(e event.Complete) {
	p.line("%s", p.styles.Dim.Render(fmt.Sprintf("tokens: %d prompt, %d completion, %d total",
		e.Usage.PromptTokens, e.Usage.CompletionTokens, e.Usage.TotalTokens)))
}

func (p *Printer) OnError(e event.StreamError) {
	p.line("%s %s", p.styles.Error.Render("error:"), e.Message)
}

func (p *Printer) OnApprovalRequested(pr approval.Proposal) {
	if p.opts.OnApproval != nil {
		p.opts.OnApproval(pr)
		return
	}
	p.line("%s %s(%s) id=%s", p.styles.Approval.Render("? pending:"), pr.ToolName, pr.Parameters.String(), pr.Key)
}

func (p *Printer) OnToolResult(o toolflow.Outcome) {
	p.Result(o)
}

// Result prints one tool outcome.
func (p *Printer) Result(o toolflow.Outcome) {
	name := o.Tool.Name
	if name == "" {
		name = "tool"
	}
	switch {
	case o.Skipped != "":
		p.line("%s %s", p.styles.Warning.Render("⊘ "+name), o.Skipped)
	case o.Err != nil && o.Text == "":
		p.line("%s %v", p.styles.Error.Render("✗ "+name), o.Err)
		return
	case o.Err != nil:
		p.line("%s", p.styles.Error.Render("✗ "+name))
	default:
		p.line("%s", p.styles.Tool.Render("✓ "+name))
	}
	if o.Text == "" {
		return
	}
	if o.Narrative {
		p.line("%s", p.md.Render(o.Text, p.opts.Width))
		return
	}
	p.line("%s", p.styles.Result.Render(strings.TrimRight(o.Text, "\n")))
}

func (p *Printer) OnDone(o orchestrator.Outcome) {
	switch o.Status {
	case orchestrator.StatusComplete:
		p.line("%s", p.styles.Success.Render("● session "+o.SessionID+" complete"))
	case orchestrator.StatusCancelled:
		p.line("%s", p.styles.Warning.Render("● session "+o.SessionID+" cancelled"))
	default:
		p.line("%s %v", p.styles.Error.Render("● session "+o.SessionID+" failed:"), o.Err)
	}
	for _, r := range o.Rejected {
		p.line("%s", p.styles.Dim.Render(fmt.Sprintf("  %s(%s) not run: %s", r.Proposal.ToolName, r.Proposal.Parameters.String(), r.Reason)))
	}
	if o.SkippedFrames > 0 {
		p.line("%s", p.styles.Dim.Render(fmt.Sprintf("  %d malformed frame(s) skipped", o.SkippedFrames)))
	}
	if p.opts.OnDone != nil {
		p.opts.OnDone(o)
	}
}
