// ABOUTME: ApprovalGate: one suspended tool call moving Proposed -> Approved | Rejected exactly once
// ABOUTME: An unanswered gate auto-rejects after its timeout; later decisions are ignored

package approval

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

// DefaultTimeout is how long a gate waits for a decision.
const DefaultTimeout = 2 * time.Minute

var (
	// ErrGateResolved is returned for a decision on a gate that already resolved.
	ErrGateResolved = errors.New("approval already resolved")
	// ErrUnknownRequest is returned for a decision naming no known request.
	ErrUnknownRequest = errors.New("unknown approval request")
)

// State is the lifecycle state of a gate.
type State int

const (
	StateProposed State = iota
	StateApproved
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateProposed:
		return "proposed"
	case StateApproved:
		return "approved"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Reason records what resolved a gate.
type Reason string

const (
	ReasonUser      Reason = "user"
	ReasonPolicy    Reason = "policy"
	ReasonTimeout   Reason = "timeout"
	ReasonCancelled Reason = "cancelled"
)

// Source says where a proposal came from, which decides who executes it.
type Source int

const (
	// SourceServer proposals are decided by submitting to the server.
	SourceServer Source = iota
	// SourceInline proposals came from an envelope in model output and run locally.
	SourceInline
)

// Proposal is a tool call awaiting a decision.
type Proposal struct {
	// Key correlates decisions: the wire request id, or the envelope signature.
	Key        string
	RequestID  string
	ToolCallID string
	ToolName   string
	Parameters tools.Values
	Source     Source
	ProposedAt time.Time
}

// Decision is an inbound approve/reject for a pending request.
type Decision struct {
	RequestID string `json:"request_id"`
	Approved  bool   `json:"approved"`
	Reason    string `json:"reason,omitempty"`
}

// Resolution is the final outcome of a gate.
type Resolution struct {
	Proposal Proposal
	Approved bool
	Reason   Reason
	// Note carries the free-text reason supplied with a decision.
	Note string
}

// Gate is a single suspended tool call.
type Gate struct {
	mu        sync.Mutex
	proposal  Proposal
	state     State
	res       Resolution
	timer     *time.Timer
	onResolve func(Resolution)
	done      chan struct{}
}

func newGate(p Proposal, onResolve func(Resolution)) *Gate {
	return &Gate{proposal: p, onResolve: onResolve, done: make(chan struct{})}
}

// arm starts the timeout after which an unanswered gate rejects itself.
func (g *Gate) arm(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateProposed {
		return
	}
	g.timer = time.AfterFunc(timeout, func() {
		g.resolve(false, ReasonTimeout, fmt.Sprintf("no decision within %s", timeout))
	})
}

// Proposal returns the proposal this gate holds.
func (g *Gate) Proposal() Proposal { return g.proposal }

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Done is closed once the gate resolves.
func (g *Gate) Done() <-chan struct{} { return g.done }

// Resolution returns the outcome; ok is false while pending.
func (g *Gate) Resolution() (Resolution, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.res, g.state != StateProposed
}

// resolve moves the gate to its final state. It returns false if the gate
// had already resolved. onResolve runs once, outside the lock.
func (g *Gate) resolve(approved bool, reason Reason, note string) bool {
	g.mu.Lock()
	if g.state != StateProposed {
		g.mu.Unlock()
		return false
	}
	if approved {
		g.state = StateApproved
	} else {
		g.state = StateRejected
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	g.res = Resolution{Proposal: g.proposal, Approved: approved, Reason: reason, Note: note}
	res, cb := g.res, g.onResolve
	g.mu.Unlock()

	close(g.done)
	if cb != nil {
		cb(res)
	}
	return true
}
