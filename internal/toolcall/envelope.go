// ABOUTME: Approval envelope recognizer for <tool_approval>{...}</tool_approval> blocks
// ABOUTME: Payloads missing tool_name or parameters are not approval requests

package toolcall

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

const (
	OpenMarker  = "<tool_approval>"
	CloseMarker = "</tool_approval>"
)

// Envelope is a structured approval request embedded in model output.
// Approved is nil while the decision is pending.
type Envelope struct {
	ToolName   string       `json:"tool_name"`
	Parameters tools.Values `json:"parameters"`
	Approved   *bool        `json:"approved"`
	RequestID  string       `json:"request_id,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
}

// Pending reports whether no decision has been recorded.
func (e Envelope) Pending() bool { return e.Approved == nil }

// Signature identifies the envelope by tool name and parameters, for
// correlation when no wire id was supplied.
func (e Envelope) Signature() string {
	var b strings.Builder
	b.WriteString(e.ToolName)
	b.WriteByte('(')
	for i, p := range e.Parameters {
		if i > 0 {
			b.WriteByte(',')
		}
		name, _ := json.Marshal(p.Name)
		val, _ := json.Marshal(p.Value)
		b.Write(name)
		b.WriteByte('=')
		b.Write(val)
	}
	b.WriteByte(')')
	return b.String()
}

// Key is the correlation key: the wire request id when present, the
// signature otherwise.
func (e Envelope) Key() string {
	if e.RequestID != "" {
		return e.RequestID
	}
	return e.Signature()
}

// ParseEnvelope decodes the JSON payload found between the markers.
func ParseEnvelope(payload string) (Envelope, bool) {
	raw := []byte(strings.TrimSpace(payload))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, false
	}
	name, hasName := fields["tool_name"]
	params, hasParams := fields["parameters"]
	if !hasName || !hasParams || isNull(name) || isNull(params) {
		return Envelope{}, false
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, false
	}
	if strings.TrimSpace(env.ToolName) == "" {
		return Envelope{}, false
	}
	for _, p := range env.Parameters {
		if p.Name == "" {
			return Envelope{}, false
		}
	}
	return env, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// FindEnvelopes returns every valid envelope in text, in order. Blocks with
// invalid payloads are skipped.
func FindEnvelopes(text string) []Envelope {
	var out []Envelope
	for {
		start := strings.Index(text, OpenMarker)
		if start < 0 {
			return out
		}
		rest := text[start+len(OpenMarker):]
		end := strings.Index(rest, CloseMarker)
		if end < 0 {
			return out
		}
		if env, ok := ParseEnvelope(rest[:end]); ok {
			out = append(out, env)
		}
		text = rest[end+len(CloseMarker):]
	}
}

// Scanner finds envelopes in text that arrives piecemeal. Content is
// accumulated; each envelope is reported once, when its closing marker
// arrives.
type Scanner struct {
	buf    strings.Builder
	offset int
}

// Write appends s and returns envelopes completed by it.
func (s *Scanner) Write(str string) []Envelope {
	s.buf.WriteString(str)
	all := s.buf.String()

	var out []Envelope
	for {
		tail := all[s.offset:]
		start := strings.Index(tail, OpenMarker)
		if start < 0 {
			// Keep a possible partial open marker in view.
			s.offset = max(s.offset, len(all)-len(OpenMarker)+1)
			return out
		}
		body := tail[start+len(OpenMarker):]
		end := strings.Index(body, CloseMarker)
		if end < 0 {
			s.offset += start
			return out
		}
		if env, ok := ParseEnvelope(body[:end]); ok {
			out = append(out, env)
		}
		s.offset += start + len(OpenMarker) + end + len(CloseMarker)
	}
}

// Content returns everything written so far.
func (s *Scanner) Content() string { return s.buf.String() }
