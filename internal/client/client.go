// ABOUTME: Client for the agent server's REST control surface: execute, events, approve, stop, chat
// ABOUTME: Transport failures are wrapped in *TransportError; the event stream is returned raw for decoding

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
	xhttp "github.com/bigduu/copilot-client-app-sub002/internal/http"
)

// Status is the state reported by the execute endpoint.
type Status string

const (
	StatusStarted        Status = "started"
	StatusAlreadyRunning Status = "already_running"
	StatusCompleted      Status = "completed"
	StatusError          Status = "error"
	StatusCancelled      Status = "cancelled"
	StatusPending        Status = "pending"
)

// Attachable reports whether an event stream is worth opening for s.
func (s Status) Attachable() bool {
	switch s {
	case StatusStarted, StatusAlreadyRunning, StatusPending, StatusCompleted:
		return true
	default:
		return false
	}
}

// ExecuteResponse is returned by Execute.
type ExecuteResponse struct {
	SessionID string `json:"session_id"`
	Status    Status `json:"status"`
	EventsURL string `json:"events_url"`
}

// ChatRequest starts or continues a conversation.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
}

// ChatResponse is returned by Chat.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	StreamURL string `json:"stream_url"`
	Status    string `json:"status"`
}

// StopResponse is returned by Stop.
type StopResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TransportError is a failure talking to the server.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status behind the error, or 0.
func (e *TransportError) StatusCode() int {
	var se *xhttp.StatusError
	if errors.As(e.Err, &se) {
		return se.Code
	}
	return 0
}

// Client talks to one agent server.
type Client struct {
	rest *xhttp.Client
}

// New creates a Client for serverURL. A nil hc uses a hardened default
// client without an overall timeout, since event streams are long-lived.
func New(serverURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = xhttp.SecureHTTPClient(0)
	}
	return &Client{rest: xhttp.NewClient(
		strings.TrimRight(serverURL, "/"),
		xhttp.WithHTTPClient(hc),
		xhttp.WithHeader("Content-Type", "application/json"),
	)}
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string { return c.rest.BaseURL() }

func sessionPath(prefix, id string) string {
	return "/api/v1/" + prefix + "/" + url.PathEscape(id)
}

// Execute asks the server to run the agent for sessionID. It is idempotent:
// a session that is already running reports StatusAlreadyRunning.
func (c *Client) Execute(ctx context.Context, sessionID string) (ExecuteResponse, error) {
	var out ExecuteResponse
	if err := c.rest.JSON(ctx, http.MethodPost, sessionPath("execute", sessionID), nil, &out); err != nil {
		return ExecuteResponse{}, &TransportError{Op: "execute " + sessionID, Err: err}
	}
	if out.SessionID == "" {
		out.SessionID = sessionID
	}
	return out, nil
}

// Events opens the read-only event stream of sessionID. The caller closes it.
func (c *Client) Events(ctx context.Context, sessionID string) (io.ReadCloser, error) {
	rc, err := c.rest.Stream(ctx, http.MethodGet, sessionPath("events", sessionID), nil)
	if err != nil {
		return nil, &TransportError{Op: "open events " + sessionID, Err: err}
	}
	return rc, nil
}

// SubmitApproval forwards a decision for a server-side approval request.
func (c *Client) SubmitApproval(ctx context.Context, sessionID string, d approval.Decision) error {
	if err := c.rest.JSON(ctx, http.MethodPost, sessionPath("approve", sessionID), d, nil); err != nil {
		return &TransportError{Op: "approve " + d.RequestID, Err: err}
	}
	return nil
}

// Respond answers a pending clarification question.
func (c *Client) Respond(ctx context.Context, sessionID, response string) error {
	body := struct {
		Response string `json:"response"`
	}{response}
	if err := c.rest.JSON(ctx, http.MethodPost, sessionPath("respond", sessionID), body, nil); err != nil {
		return &TransportError{Op: "respond " + sessionID, Err: err}
	}
	return nil
}

// Stop cancels the server-side run of sessionID.
func (c *Client) Stop(ctx context.Context, sessionID string) (StopResponse, error) {
	var out StopResponse
	if err := c.rest.JSON(ctx, http.MethodPost, sessionPath("stop", sessionID), nil, &out); err != nil {
		return StopResponse{}, &TransportError{Op: "stop " + sessionID, Err: err}
	}
	return out, nil
}

// Chat posts a user message.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var out ChatResponse
	if err := c.rest.JSON(ctx, http.MethodPost, "/api/v1/chat", req, &out); err != nil {
		return ChatResponse{}, &TransportError{Op: "chat", Err: err}
	}
	return out, nil
}
