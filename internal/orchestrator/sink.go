// ABOUTME: Session sink contract and the serializing wrapper that stops forwarding on cancel
// ABOUTME: OnDone is the single completion signal of a session

package orchestrator

import (
	"sync"
	"sync/atomic"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
	"github.com/bigduu/copilot-client-app-sub002/internal/event"
	"github.com/bigduu/copilot-client-app-sub002/internal/toolflow"
)

// Status is how a session ended.
type Status int

const (
	StatusComplete Status = iota
	StatusError
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the final report of a session.
type Outcome struct {
	SessionID string
	Status    Status
	// Err is set for StatusError: a *client.TransportError or ErrAgentFailed.
	Err error
	// Usage is the usage reported by the complete event.
	Usage event.TokenUsage
	// Content is the assistant text accumulated from token events.
	Content string
	// Rejected lists approvals still pending when the session ended.
	Rejected []approval.Resolution
	// SkippedFrames counts frames that could not be decoded.
	SkippedFrames int
}

// Sink receives one session's events. Calls are serialized.
type Sink interface {
	event.Sink
	// OnApprovalRequested is called when a gate waits for a user decision.
	OnApprovalRequested(approval.Proposal)
	// OnToolResult reports an inline tool call that was decided and ran (or was skipped).
	OnToolResult(toolflow.Outcome)
	// OnDone is called exactly once, last.
	OnDone(Outcome)
}

// NopSink ignores everything. Embed it to implement only some methods.
type NopSink struct{ event.NopSink }

func (NopSink) OnApprovalRequested(approval.Proposal) {}
func (NopSink) OnToolResult(toolflow.Outcome)         {}
func (NopSink) OnDone(Outcome)                        {}

// guardedSink serializes calls into a Sink and drops everything but OnDone
// once the session is cancelled. cancel never takes the lock, so a sink
// method may stop its own session.
type guardedSink struct {
	mu        sync.Mutex
	sink      Sink
	cancelled atomic.Bool
	done      bool
}

func (g *guardedSink) forward(fn func(Sink)) bool {
	if g.cancelled.Load() {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done || g.cancelled.Load() {
		return false
	}
	fn(g.sink)
	return true
}

func (g *guardedSink) cancel() { g.cancelled.Store(true) }

func (g *guardedSink) isCancelled() bool { return g.cancelled.Load() }

func (g *guardedSink) finish(out Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.done = true
	g.sink.OnDone(out)
}
