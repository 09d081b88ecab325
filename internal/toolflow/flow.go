// ABOUTME: Tool-call pipeline: parse -> extract -> policy/gate -> execute -> synthesize
// ABOUTME: Every failure becomes an Outcome value; read-only batches execute concurrently

package toolflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
	"github.com/bigduu/copilot-client-app-sub002/internal/log"
	"github.com/bigduu/copilot-client-app-sub002/internal/params"
	"github.com/bigduu/copilot-client-app-sub002/internal/synth"
	"github.com/bigduu/copilot-client-app-sub002/internal/toolcall"
	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

// DefaultConcurrency bounds parallel read-only executions in a batch.
const DefaultConcurrency = 4

// Outcome is the result of one tool call, successful or not.
type Outcome struct {
	Request string
	Tool    tools.Spec
	Args    tools.Values
	Result  *tools.Result
	// Err is an extraction failure, an unknown tool, or a *tools.ExecutionError.
	Err error
	// Skipped carries the reason a call never executed (rejection, denial, cancellation).
	Skipped string
	// Text is the synthesized rendering shown to the user.
	Text      string
	Narrative bool
}

// Executed reports whether the tool actually ran and succeeded.
func (o Outcome) Executed() bool { return o.Result != nil && o.Err == nil }

// Hooks connects a call to its session.
type Hooks struct {
	// Gates holds approval gates; required when the policy may ask.
	Gates *approval.Set
	// OnProposal is called after a gate opens; the caller routes the decision
	// back through Gates.Decide.
	OnProposal func(approval.Proposal)
	// OnToken receives narrative tokens as they stream.
	OnToken func(string)
}

func (h Hooks) token(s string) {
	if h.OnToken != nil {
		h.OnToken(s)
	}
}

// Deps are the collaborators of a Flow.
type Deps struct {
	Executor    *tools.Executor
	Extractor   *params.Extractor
	Policy      *approval.Policy
	Synthesizer *synth.Synthesizer
	Concurrency int
}

// Flow runs tool calls through the full pipeline.
type Flow struct {
	parser      *toolcall.Parser
	executor    *tools.Executor
	extractor   *params.Extractor
	policy      *approval.Policy
	synth       *synth.Synthesizer
	concurrency int
}

// New creates a Flow. Missing policy and synthesizer get defaults.
func New(d Deps) *Flow {
	if d.Policy == nil {
		d.Policy = approval.NewPolicy(approval.ModeNormal, nil, nil, nil)
	}
	if d.Synthesizer == nil {
		d.Synthesizer = synth.New(nil, synth.Options{})
	}
	if d.Extractor == nil {
		d.Extractor = params.New(nil, nil)
	}
	if d.Concurrency <= 0 {
		d.Concurrency = DefaultConcurrency
	}
	return &Flow{
		parser:      toolcall.NewParser(d.Executor.Registry()),
		executor:    d.Executor,
		extractor:   d.Extractor,
		policy:      d.Policy,
		synth:       d.Synthesizer,
		concurrency: d.Concurrency,
	}
}

// Registry exposes the tool registry.
func (f *Flow) Registry() *tools.Registry { return f.executor.Registry() }

// Invoke handles a slash-command utterance end to end. ok is false when
// input is not a command at all.
func (f *Flow) Invoke(ctx context.Context, input string, h Hooks) (Outcome, bool) {
	out, ok, err := f.bind(ctx, input)
	if !ok {
		return Outcome{}, false
	}
	if err != nil {
		return f.failed(out, err), true
	}
	return f.gateAndRun(ctx, out, h), true
}

// InvokeBatch binds every input and runs the bound calls through RunBatch.
// Inputs that are not commands, or fail to bind, yield failed outcomes in
// place. Outcomes keep input order.
func (f *Flow) InvokeBatch(ctx context.Context, inputs []string, h Hooks) []Outcome {
	outs := make([]Outcome, len(inputs))
	var calls []Call
	var at []int
	for i, input := range inputs {
		out, ok, err := f.bind(ctx, input)
		switch {
		case !ok:
			outs[i] = f.failed(Outcome{Request: input}, fmt.Errorf("%q is not a tool command", input))
		case err != nil:
			outs[i] = f.failed(out, err)
		default:
			calls = append(calls, Call{Request: input, Tool: out.Tool.Name, Args: out.Args})
			at = append(at, i)
		}
	}
	for j, out := range f.RunBatch(ctx, calls, h) {
		outs[at[j]] = out
	}
	return outs
}

// bind parses input and extracts its arguments. ok is false when input is
// not a command.
func (f *Flow) bind(ctx context.Context, input string) (out Outcome, ok bool, err error) {
	req, ok, err := f.parser.Parse(input)
	if !ok {
		return Outcome{}, false, nil
	}
	out = Outcome{Request: input}
	if err != nil {
		return out, true, err
	}

	out.Tool = f.executor.Registry().Get(req.ToolName).Spec
	args, err := f.extractor.Extract(ctx, out.Tool, req.RawDescription)
	if err != nil {
		return out, true, err
	}
	out.Args = args
	return out, true, nil
}

// Call is a tool invocation with arguments already bound.
type Call struct {
	Request string
	Tool    string
	Args    tools.Values
}

// Run gates and executes a pre-bound call.
func (f *Flow) Run(ctx context.Context, c Call, h Hooks) Outcome {
	t := f.executor.Registry().Get(c.Tool)
	if t == nil {
		err := &tools.UnknownToolError{Name: c.Tool, Suggestions: f.executor.Registry().Suggest(c.Tool)}
		return f.failed(Outcome{Request: c.Request, Tool: tools.Spec{Name: c.Tool}, Args: c.Args}, err)
	}
	return f.gateAndRun(ctx, Outcome{Request: c.Request, Tool: t.Spec, Args: c.Args}, h)
}

// Resolved finishes a call whose approval was decided elsewhere: approved
// calls execute, rejected calls produce a skipped result.
func (f *Flow) Resolved(ctx context.Context, c Call, res approval.Resolution, h Hooks) Outcome {
	t := f.executor.Registry().Get(c.Tool)
	if t == nil {
		err := &tools.UnknownToolError{Name: c.Tool, Suggestions: f.executor.Registry().Suggest(c.Tool)}
		return f.failed(Outcome{Request: c.Request, Tool: tools.Spec{Name: c.Tool}, Args: c.Args}, err)
	}
	out := Outcome{Request: c.Request, Tool: t.Spec, Args: c.Args}
	if !res.Approved {
		return f.skipped(out, rejection(res))
	}
	return f.execute(ctx, out, h)
}

// RunBatch runs calls and returns outcomes in input order. Read-only calls
// that the policy allows outright execute concurrently; the rest run one at
// a time afterwards so approvals are asked in order.
func (f *Flow) RunBatch(ctx context.Context, calls []Call, h Hooks) []Outcome {
	outs := make([]Outcome, len(calls))
	quiet := h
	quiet.OnToken = nil

	var serial []int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, c := range calls {
		t := f.executor.Registry().Get(c.Tool)
		if t == nil || !t.ReadOnly {
			serial = append(serial, i)
			continue
		}
		if v, _ := f.policy.Evaluate(t.Spec, c.Args); v != approval.VerdictAllow {
			serial = append(serial, i)
			continue
		}
		g.Go(func() error {
			outs[i] = f.Run(gctx, c, quiet)
			return nil
		})
	}
	_ = g.Wait()

	for _, i := range serial {
		outs[i] = f.Run(ctx, calls[i], h)
	}
	return outs
}

func (f *Flow) gateAndRun(ctx context.Context, out Outcome, h Hooks) Outcome {
	verdict, reason := f.policy.Evaluate(out.Tool, out.Args)
	switch verdict {
	case approval.VerdictDeny:
		return f.skipped(out, reason)
	case approval.VerdictAsk:
		res, err := f.await(ctx, out, h)
		if err != nil {
			return f.failed(out, err)
		}
		if !res.Approved {
			return f.skipped(out, rejection(res))
		}
	}
	return f.execute(ctx, out, h)
}

// await opens an inline gate for out and blocks until it resolves or ctx ends.
func (f *Flow) await(ctx context.Context, out Outcome, h Hooks) (approval.Resolution, error) {
	if h.Gates == nil {
		return approval.Resolution{}, fmt.Errorf("tool %s requires approval but no approval gate is configured", out.Tool.Name)
	}
	env := toolcall.Envelope{ToolName: out.Tool.Name, Parameters: out.Args}
	g, created := h.Gates.Propose(approval.Proposal{
		Key:        env.Key(),
		ToolName:   out.Tool.Name,
		Parameters: out.Args,
		Source:     approval.SourceInline,
	}, nil)
	if g == nil {
		return approval.Resolution{}, fmt.Errorf("tool %s: approval %s was already decided", out.Tool.Name, env.Key())
	}
	if created && h.OnProposal != nil {
		h.OnProposal(g.Proposal())
	}

	select {
	case <-g.Done():
	case <-ctx.Done():
		_ = h.Gates.ResolveGate(g, false, approval.ReasonCancelled, ctx.Err().Error())
		<-g.Done()
	}
	res, _ := g.Resolution()
	return res, nil
}

func (f *Flow) execute(ctx context.Context, out Outcome, h Hooks) Outcome {
	res, err := f.executor.Execute(ctx, out.Tool.Name, out.Args)
	if err != nil {
		return f.failed(out, err)
	}
	out.Result = &res

	s := f.synth.Synthesize(ctx, synth.Input{
		Tool:    out.Tool,
		Request: out.Request,
		Args:    out.Args,
		Output:  res.Output,
	}, h.token)
	out.Text, out.Narrative = s.Text, s.Narrative
	return out
}

func (f *Flow) failed(out Outcome, err error) Outcome {
	out.Err = err
	var execErr *tools.ExecutionError
	switch {
	case errors.As(err, &execErr):
		log.Warn("toolflow: %v", err)
	case errors.Is(err, params.ErrExtractionFailed):
		log.Info("toolflow: %v", err)
	default:
		log.Debug("toolflow: %v", err)
	}
	out.Text = f.synth.Template(synth.Input{Tool: out.Tool, Request: out.Request, Args: out.Args, Err: err})
	return out
}

func (f *Flow) skipped(out Outcome, reason string) Outcome {
	out.Skipped = reason
	out.Text = f.synth.Template(synth.Input{Tool: out.Tool, Request: out.Request, Args: out.Args, Skipped: reason})
	return out
}

func rejection(res approval.Resolution) string {
	var b strings.Builder
	switch res.Reason {
	case approval.ReasonTimeout:
		b.WriteString("approval timed out")
	case approval.ReasonCancelled:
		b.WriteString("session cancelled")
	case approval.ReasonPolicy:
		b.WriteString("denied by policy")
	default:
		b.WriteString("rejected by user")
	}
	if res.Note != "" {
		fmt.Fprintf(&b, " (%s)", res.Note)
	}
	return b.String()
}
