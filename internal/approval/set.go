// ABOUTME: Per-session set of approval gates keyed by correlation key
// ABOUTME: Routes decisions, rejects unknown ids, and rejects everything on cancellation

package approval

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bigduu/copilot-client-app-sub002/internal/log"
)

// Set holds the gates of one session. Safe for concurrent use.
//
// Proposals carrying a wire RequestID are unique: proposing the same id
// again is a duplicate. Proposals keyed only by signature stand for
// separate calls, so identical ones queue under their key and a decision
// for the key resolves the oldest pending one.
type Set struct {
	mu       sync.Mutex
	timeout  time.Duration
	pending  map[string][]*Gate
	resolved map[string]Resolution
	closed   bool
	now      func() time.Time
}

// NewSet creates a Set whose gates time out after timeout (DefaultTimeout if zero).
func NewSet(timeout time.Duration) *Set {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Set{
		timeout:  timeout,
		pending:  make(map[string][]*Gate),
		resolved: make(map[string]Resolution),
		now:      time.Now,
	}
}

// Propose opens a gate for p. A proposal whose wire id is already pending
// or resolved is a duplicate: the existing gate (nil if resolved) is
// returned with created=false. After Close every proposal is rejected
// immediately.
func (s *Set) Propose(p Proposal, onResolve func(Resolution)) (g *Gate, created bool) {
	if p.Key == "" {
		p.Key = p.RequestID
	}
	if p.ProposedAt.IsZero() {
		p.ProposedAt = s.now()
	}

	s.mu.Lock()
	if p.RequestID != "" {
		if queue := s.pending[p.Key]; len(queue) > 0 {
			s.mu.Unlock()
			return queue[0], false
		}
		if _, ok := s.resolved[p.Key]; ok {
			s.mu.Unlock()
			return nil, false
		}
	}
	if s.closed {
		s.mu.Unlock()
		g = newGate(p, onResolve)
		g.resolve(false, ReasonCancelled, "session closed")
		return g, true
	}

	g = newGate(p, func(res Resolution) {
		s.mu.Lock()
		s.remove(g)
		s.resolved[res.Proposal.Key] = res
		s.mu.Unlock()

		log.Info("approval: %s %s (%s) approved=%v reason=%s", res.Proposal.ToolName, res.Proposal.Key, res.Proposal.Parameters, res.Approved, res.Reason)
		if onResolve != nil {
			onResolve(res)
		}
	})
	s.pending[p.Key] = append(s.pending[p.Key], g)
	s.mu.Unlock()
	g.arm(s.timeout)
	return g, true
}

// remove drops g from its key's queue. Callers hold s.mu.
func (s *Set) remove(g *Gate) {
	key := g.proposal.Key
	queue := slices.DeleteFunc(s.pending[key], func(x *Gate) bool { return x == g })
	if len(queue) == 0 {
		delete(s.pending, key)
		return
	}
	s.pending[key] = queue
}

// oldest returns the oldest pending gate for key, and whether key ever resolved.
func (s *Set) oldest(key string) (g *Gate, resolved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if queue := s.pending[key]; len(queue) > 0 {
		g = queue[0]
	}
	_, resolved = s.resolved[key]
	return g, resolved
}

// Decide applies d to the oldest pending gate it names. Unknown ids yield
// ErrUnknownRequest; ids with nothing pending that already resolved yield
// ErrGateResolved and change nothing.
func (s *Set) Decide(d Decision) error {
	g, done := s.oldest(d.RequestID)
	switch {
	case g != nil:
	case done:
		return fmt.Errorf("%w: %s", ErrGateResolved, d.RequestID)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownRequest, d.RequestID)
	}

	if !g.resolve(d.Approved, ReasonUser, d.Reason) {
		return fmt.Errorf("%w: %s", ErrGateResolved, d.RequestID)
	}
	return nil
}

// ResolveGate applies a non-user outcome (such as a policy verdict) to g.
func (s *Set) ResolveGate(g *Gate, approved bool, reason Reason, note string) error {
	if !g.resolve(approved, reason, note) {
		return fmt.Errorf("%w: %s", ErrGateResolved, g.proposal.Key)
	}
	return nil
}

// Pending returns the open proposals, oldest first.
func (s *Set) Pending() []Proposal {
	s.mu.Lock()
	out := make([]Proposal, 0, len(s.pending))
	for _, queue := range s.pending {
		for _, g := range queue {
			out = append(out, g.proposal)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Proposal) int { return a.ProposedAt.Compare(b.ProposedAt) })
	return out
}

// Close rejects every pending gate with reason and refuses new proposals.
// It returns the number of gates it rejected.
func (s *Set) Close(reason Reason) int {
	s.mu.Lock()
	s.closed = true
	var gates []*Gate
	for _, queue := range s.pending {
		gates = append(gates, queue...)
	}
	s.mu.Unlock()

	n := 0
	for _, g := range gates {
		if g.resolve(false, reason, "session ended") {
			n++
		}
	}
	return n
}
