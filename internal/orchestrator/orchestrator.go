// ABOUTME: SessionStreamOrchestrator: one event stream per active session, opened on demand
// ABOUTME: Routes approval decisions and stop requests to sessions; runs many sessions in parallel

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
	"github.com/bigduu/copilot-client-app-sub002/internal/client"
	"github.com/bigduu/copilot-client-app-sub002/internal/log"
	"github.com/bigduu/copilot-client-app-sub002/internal/stream"
	"github.com/bigduu/copilot-client-app-sub002/internal/toolflow"
)

var (
	// ErrAlreadyStreaming is returned when a session already has an open stream.
	ErrAlreadyStreaming = errors.New("session already streaming")
	// ErrNoSession is returned for decisions or stops naming no active session.
	ErrNoSession = errors.New("no active session")
	// ErrAgentFailed wraps the message of a terminal error event.
	ErrAgentFailed = errors.New("agent failed")
)

// Control is the server control surface the orchestrator drives.
type Control interface {
	Execute(ctx context.Context, sessionID string) (client.ExecuteResponse, error)
	Events(ctx context.Context, sessionID string) (io.ReadCloser, error)
	SubmitApproval(ctx context.Context, sessionID string, d approval.Decision) error
	Stop(ctx context.Context, sessionID string) (client.StopResponse, error)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Control Control
	// Flow executes inline approval envelopes locally; nil disables them.
	Flow *toolflow.Flow
	// Policy may answer approvals without asking; nil always asks.
	Policy *approval.Policy
}

// Options tune session behaviour.
type Options struct {
	ApprovalTimeout time.Duration
	ChunkSize       int
}

// Orchestrator owns the active sessions.
type Orchestrator struct {
	deps Deps
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.ApprovalTimeout <= 0 {
		opts.ApprovalTimeout = approval.DefaultTimeout
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = stream.DefaultChunkSize
	}
	return &Orchestrator{deps: deps, opts: opts, sessions: make(map[string]*Session)}
}

// Open starts streaming sessionID into sink. Execution is requested
// idempotently and the event stream is attached in the background; the
// outcome arrives through sink.OnDone and Session.Wait. A second Open for a
// session that is still active fails with ErrAlreadyStreaming.
func (o *Orchestrator) Open(ctx context.Context, sessionID string, sink Sink) (*Session, error) {
	o.mu.Lock()
	if _, ok := o.sessions[sessionID]; ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyStreaming, sessionID)
	}
	s := newSession(ctx, o, sessionID, sink)
	o.sessions[sessionID] = s
	o.mu.Unlock()

	log.Debug("orchestrator: opened session %s", sessionID)
	go s.run()
	return s, nil
}

// Session returns the active session for id.
func (o *Orchestrator) Session(id string) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[id]
	return s, ok
}

// Active returns the number of open sessions.
func (o *Orchestrator) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// Decide routes an approval decision to sessionID. Decisions naming unknown
// or already resolved requests change nothing and return an error.
func (o *Orchestrator) Decide(sessionID string, d approval.Decision) error {
	s, ok := o.Session(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, sessionID)
	}
	if err := s.gates.Decide(d); err != nil {
		log.Warn("orchestrator: session %s: ignoring decision: %v", sessionID, err)
		return err
	}
	return nil
}

// Stop cancels sessionID locally, then asks the server to stop the run.
// Local cancellation happens even when the server call fails.
func (o *Orchestrator) Stop(ctx context.Context, sessionID string) error {
	s, ok := o.Session(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, sessionID)
	}
	s.Cancel()
	if _, err := o.deps.Control.Stop(ctx, sessionID); err != nil {
		return fmt.Errorf("stopping %s on server: %w", sessionID, err)
	}
	return nil
}

// RunAll streams every id in parallel and returns their outcomes in order.
// sinkFor supplies the sink of each session.
func (o *Orchestrator) RunAll(ctx context.Context, ids []string, sinkFor func(id string) Sink) ([]Outcome, error) {
	outs := make([]Outcome, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			s, err := o.Open(gctx, id, sinkFor(id))
			if err != nil {
				return err
			}
			outs[i] = s.Wait()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outs, err
	}
	return outs, nil
}

func (o *Orchestrator) release(s *Session) {
	o.mu.Lock()
	if o.sessions[s.id] == s {
		delete(o.sessions, s.id)
	}
	o.mu.Unlock()
}
