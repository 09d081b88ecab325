// ABOUTME: One session's read loop: execute, attach the event stream, decode, forward in order
// ABOUTME: Approval interjections open gates without ending the stream; every path ends in one OnDone

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
	"github.com/bigduu/copilot-client-app-sub002/internal/client"
	"github.com/bigduu/copilot-client-app-sub002/internal/event"
	"github.com/bigduu/copilot-client-app-sub002/internal/eventbus"
	"github.com/bigduu/copilot-client-app-sub002/internal/log"
	"github.com/bigduu/copilot-client-app-sub002/internal/stream"
	"github.com/bigduu/copilot-client-app-sub002/internal/toolcall"
	"github.com/bigduu/copilot-client-app-sub002/internal/toolflow"
	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
	"github.com/bigduu/copilot-client-app-sub002/internal/tracker"
)

const inlineRequest = "inline approval"

// Session is one active stream. It is discarded when it ends.
type Session struct {
	id     string
	o      *Orchestrator
	ctx    context.Context
	cancel context.CancelFunc
	sink   *guardedSink
	gates  *approval.Set
	bus    *eventbus.Bus[event.Event]
	todo   *tracker.Todo
	budget *tracker.Budget

	// Loop-owned state.
	scanner  toolcall.Scanner
	started  map[string]bool
	terminal event.Event

	mu        sync.Mutex
	finishing bool
	rejected  []approval.Resolution
	work      sync.WaitGroup

	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newSession(ctx context.Context, o *Orchestrator, id string, sink Sink) *Session {
	if sink == nil {
		sink = NopSink{}
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:      id,
		o:       o,
		ctx:     sctx,
		cancel:  cancel,
		sink:    &guardedSink{sink: sink},
		gates:   approval.NewSet(o.opts.ApprovalTimeout),
		bus:     eventbus.New[event.Event](),
		todo:    tracker.NewTodo(),
		budget:  tracker.NewBudget(),
		started: make(map[string]bool),
		done:    make(chan struct{}),
	}
	s.bus.Subscribe(s.todo.Observe)
	s.bus.Subscribe(s.budget.Observe)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Todo returns the session's todo tracker.
func (s *Session) Todo() *tracker.Todo { return s.todo }

// Budget returns the session's token-budget tracker.
func (s *Session) Budget() *tracker.Budget { return s.budget }

// Subscribe adds an observer of every decoded event, delivered in order on
// the read loop.
func (s *Session) Subscribe(h eventbus.Handler[event.Event]) func() { return s.bus.Subscribe(h) }

// Pending returns approvals waiting for a decision.
func (s *Session) Pending() []approval.Proposal { return s.gates.Pending() }

// Cancel marks the session cancelled and stops forwarding. Pending approvals
// are rejected and the session ends with StatusCancelled.
func (s *Session) Cancel() {
	s.sink.cancel()
	s.cancel()
}

// Done is closed after OnDone has been delivered.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends and returns its outcome.
func (s *Session) Wait() Outcome {
	<-s.done
	return s.outcome
}

func (s *Session) run() {
	out := s.stream()
	s.finish(out)
}

func (s *Session) stream() Outcome {
	out := Outcome{SessionID: s.id}
	control := s.o.deps.Control

	resp, err := control.Execute(s.ctx, s.id)
	if err != nil {
		return s.failure(out, err)
	}
	log.Debug("orchestrator: %s execute status %s", s.id, resp.Status)
	if !resp.Status.Attachable() {
		if resp.Status == client.StatusCancelled {
			out.Status = StatusCancelled
			return out
		}
		out.Status = StatusError
		out.Err = fmt.Errorf("%w: server reported status %s", ErrAgentFailed, resp.Status)
		return out
	}

	rc, err := control.Events(s.ctx, s.id)
	if err != nil {
		return s.failure(out, err)
	}
	defer rc.Close()
	// Unblock a pending read when the session is cancelled.
	stopClose := context.AfterFunc(s.ctx, func() { rc.Close() })
	defer stopClose()

	dec := stream.NewDecoder()
	reason, err := dec.Run(s.ctx, rc, s.o.opts.ChunkSize, s.handle)
	out.SkippedFrames = dec.Skipped()
	out.Content = s.scanner.Content()
	log.Debug("orchestrator: %s stream ended: %s", s.id, reason)

	switch t := s.terminal.(type) {
	case event.Complete:
		out.Status = StatusComplete
		out.Usage = t.Usage
		return out
	case event.StreamError:
		out.Status = StatusError
		out.Err = fmt.Errorf("%w: %s", ErrAgentFailed, t.Message)
		return out
	}

	switch {
	case s.sink.isCancelled() || s.ctx.Err() != nil || reason == stream.EndCancelled:
		out.Status = StatusCancelled
	case err != nil:
		return s.failure(out, err)
	case reason == stream.EndSentinel:
		out.Status = StatusComplete
	default:
		return s.failure(out, fmt.Errorf("event stream ended without a terminal event: %w", io.ErrUnexpectedEOF))
	}
	return out
}

// failure turns err into a terminal outcome; cancellation is not a failure.
func (s *Session) failure(out Outcome, err error) Outcome {
	if s.sink.isCancelled() || (errors.Is(err, context.Canceled) && s.ctx.Err() != nil) {
		out.Status = StatusCancelled
		return out
	}
	var te *client.TransportError
	if !errors.As(err, &te) {
		err = &client.TransportError{Op: "read events " + s.id, Err: err}
	}
	out.Status = StatusError
	out.Err = err
	return out
}

// handle is called by the decoder for each event, in stream order.
func (s *Session) handle(e event.Event) bool {
	if s.sink.isCancelled() {
		return false
	}
	s.bus.Publish(e)

	switch ev := e.(type) {
	case event.Token:
		envelopes := s.scanner.Write(ev.Content)
		s.forwardEvent(e)
		for _, env := range envelopes {
			s.proposeInline(env)
		}
		return true
	case event.ToolStart:
		s.started[ev.ToolCallID] = true
	case event.ToolComplete:
		s.checkStarted(ev.ToolCallID, ev.Type())
	case event.ToolError:
		s.checkStarted(ev.ToolCallID, ev.Type())
	case event.ToolApprovalRequired:
		s.forwardEvent(e)
		s.proposeServer(ev)
		return true
	}

	s.forwardEvent(e)
	if event.IsTerminal(e) {
		s.terminal = e
		return false
	}
	return true
}

func (s *Session) forwardEvent(e event.Event) {
	s.sink.forward(func(k Sink) { e.Dispatch(k) })
}

func (s *Session) checkStarted(id string, t event.Type) {
	if id != "" && !s.started[id] {
		log.Warn("orchestrator: %s: %s for tool call %s that never started", s.id, t, id)
	}
}

func (s *Session) proposeServer(ev event.ToolApprovalRequired) {
	if ev.RequestID == "" {
		log.Warn("orchestrator: %s: approval request for %s without request_id ignored", s.id, ev.ToolName)
		return
	}
	p := approval.Proposal{
		Key:        ev.RequestID,
		RequestID:  ev.RequestID,
		ToolCallID: ev.ToolCallID,
		ToolName:   ev.ToolName,
		Parameters: tools.Values(ev.Parameters),
		Source:     approval.SourceServer,
	}
	s.propose(p, s.submitToServer)
}

func (s *Session) proposeInline(env toolcall.Envelope) {
	if !env.Pending() {
		s.consumeDecided(env)
		return
	}
	if s.o.deps.Flow == nil {
		log.Warn("orchestrator: %s: inline approval for %s ignored, no local tool runtime", s.id, env.ToolName)
		return
	}
	p := approval.Proposal{
		Key:        env.Key(),
		RequestID:  env.RequestID,
		ToolCallID: env.ToolCallID,
		ToolName:   env.ToolName,
		Parameters: env.Parameters,
		Source:     approval.SourceInline,
	}
	s.propose(p, s.runInline)
}

// consumeDecided applies an envelope that carries its decision to the
// pending gate with the same key. Envelopes matching nothing are ignored.
func (s *Session) consumeDecided(env toolcall.Envelope) {
	d := approval.Decision{RequestID: env.Key(), Approved: *env.Approved, Reason: "decided in stream"}
	if err := s.gates.Decide(d); err != nil {
		log.Debug("orchestrator: %s: decided envelope for %s ignored: %v", s.id, env.ToolName, err)
	}
}

// propose opens a gate, lets the policy answer when it can, and otherwise
// surfaces the proposal to the sink.
func (s *Session) propose(p approval.Proposal, then func(approval.Resolution)) {
	g, created := s.gates.Propose(p, func(res approval.Resolution) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.finishing {
			if res.Approved {
				log.Warn("orchestrator: %s: approval of %s arrived as the session ended, not run", s.id, res.Proposal.ToolName)
				return
			}
			s.rejected = append(s.rejected, res)
			return
		}
		s.work.Add(1)
		go func() {
			defer s.work.Done()
			then(res)
		}()
	})
	if !created {
		log.Debug("orchestrator: %s: duplicate approval %s", s.id, p.Key)
		return
	}

	if pol := s.o.deps.Policy; pol != nil {
		spec := tools.Spec{Name: p.ToolName}
		if flow := s.o.deps.Flow; flow != nil {
			if t := flow.Registry().Get(p.ToolName); t != nil {
				spec = t.Spec
			}
		}
		switch verdict, why := pol.Evaluate(spec, p.Parameters); verdict {
		case approval.VerdictAllow:
			_ = s.gates.ResolveGate(g, true, approval.ReasonPolicy, "allowed by policy")
			return
		case approval.VerdictDeny:
			_ = s.gates.ResolveGate(g, false, approval.ReasonPolicy, why)
			return
		}
	}
	s.sink.forward(func(k Sink) { k.OnApprovalRequested(g.Proposal()) })
}

func (s *Session) submitToServer(res approval.Resolution) {
	d := approval.Decision{RequestID: res.Proposal.RequestID, Approved: res.Approved, Reason: res.Note}
	if err := s.o.deps.Control.SubmitApproval(s.ctx, s.id, d); err != nil {
		log.Error("orchestrator: %s: submitting approval %s: %v", s.id, d.RequestID, err)
	}
}

func (s *Session) runInline(res approval.Resolution) {
	call := toolflow.Call{Request: inlineRequest, Tool: res.Proposal.ToolName, Args: res.Proposal.Parameters}
	out := s.o.deps.Flow.Resolved(s.ctx, call, res, toolflow.Hooks{})
	s.sink.forward(func(k Sink) { k.OnToolResult(out) })
}

// finish releases the session and delivers OnDone exactly once.
func (s *Session) finish(out Outcome) {
	s.once.Do(func() {
		s.mu.Lock()
		s.finishing = true
		s.mu.Unlock()

		if n := s.gates.Close(approval.ReasonCancelled); n > 0 {
			log.Info("orchestrator: %s: rejected %d pending approval(s) at %s", s.id, n, out.Status)
		}
		s.work.Wait()
		s.cancel()
		s.o.release(s)

		s.mu.Lock()
		out.Rejected = s.rejected
		s.mu.Unlock()

		s.outcome = out
		s.sink.finish(out)
		close(s.done)
	})
}
