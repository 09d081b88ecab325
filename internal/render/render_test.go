// ABOUTME: Tests for the terminal printer, markdown fallback, and approval prompt parsing
// ABOUTME: Output goes to buffers, so styles render without escape codes

package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
	"github.com/bigduu/copilot-client-app-sub002/internal/event"
	"github.com/bigduu/copilot-client-app-sub002/internal/orchestrator"
	"github.com/bigduu/copilot-client-app-sub002/internal/toolflow"
	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

func TestPrinter_StreamedTextThenToolLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{})
	p.OnToken(event.Token{Content: "Hello"})
	p.OnToken(event.Token{Content: " world"})
	p.OnToolStart(event.ToolStart{ToolCallID: "A", ToolName: "read"})
	p.OnToolComplete(event.ToolComplete{ToolCallID: "A", Result: event.ToolResult{Success: true, Result: "file body"}})

	out := buf.String()
	if !strings.HasPrefix(out, "Hello world\n") {
		t.Errorf("streamed text not terminated before tool line:\n%q", out)
	}
	for _, want := range []string{"▶ read", "[A]", "✓", "file body"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_Events(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		verbose bool
		ev      event.Event
		want    string
	}{
		{"tool error", false, event.ToolError{ToolCallID: "B", Error: "boom"}, "boom"},
		{"approval", false, event.ToolApprovalRequired{RequestID: "r1", ToolName: "bash",
			Parameters: []tools.Value{{Name: "command", Value: "ls"}}}, "bash(command=ls)"},
		{"clarification", false, event.NeedClarification{Question: "Which?", Options: []string{"a", "b"}}, "2. b"},
		{"todo list", false, event.TodoListUpdated{TodoList: event.TodoList{Title: "Plan",
			Items: []event.TodoItem{{ID: "1", Description: "step", Status: event.TodoCompleted}}}}, "Progress: 1/1"},
		{"todo progress", false, event.TodoItemProgress{ItemID: "1", Status: event.TodoBlocked, Notes: "waiting"}, "waiting"},
		{"todo completed", false, event.TodoListCompleted{TotalRounds: 3, TotalToolCalls: 7}, "3 rounds, 7 tool calls"},
		{"evaluation verbose", true, event.TodoEvaluationStarted{ItemsCount: 2}, "evaluating 2"},
		{"budget truncation", false, event.TokenBudgetUpdated{Usage: event.BudgetUsage{TotalTokens: 50, BudgetLimit: 100,
			TruncationOccurred: true, SegmentsRemoved: 2}}, "50%"},
		{"summarized", false, event.ContextSummarized{MessagesSummarized: 10, TokensSaved: 900}, "saved 900"},
		{"complete", false, event.Complete{Usage: event.TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}}, "3 total"},
		{"error", false, event.StreamError{Message: "agent died"}, "agent died"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.ev.Dispatch(NewPrinter(&buf, Options{Verbose: tt.verbose}))
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output %q missing %q", buf.String(), tt.want)
			}
		})
	}
}

func TestPrinter_QuietByDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{})
	p.OnTodoEvaluationStarted(event.TodoEvaluationStarted{ItemsCount: 2})
	p.OnTokenBudgetUpdated(event.TokenBudgetUpdated{Usage: event.BudgetUsage{TotalTokens: 1, BudgetLimit: 10}})
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestPrinter_ApprovalCallback(t *testing.T) {
	t.Parallel()

	var got []approval.Proposal
	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{OnApproval: func(pr approval.Proposal) { got = append(got, pr) }})
	p.OnApprovalRequested(approval.Proposal{Key: "k", ToolName: "write"})
	if len(got) != 1 || got[0].Key != "k" {
		t.Fatalf("callback got %+v", got)
	}
	if buf.Len() != 0 {
		t.Errorf("callback mode should not print, got %q", buf.String())
	}

	buf.Reset()
	NewPrinter(&buf, Options{}).OnApprovalRequested(approval.Proposal{Key: "k2", ToolName: "write"})
	if !strings.Contains(buf.String(), "id=k2") {
		t.Errorf("pending line missing key: %q", buf.String())
	}
}

func TestPrinter_Result(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		out  toolflow.Outcome
		want []string
	}{
		{"template", toolflow.Outcome{Tool: tools.Spec{Name: "read"}, Result: &tools.Result{}, Text: "Tool: read\nResult:\nhi"},
			[]string{"✓ read", "Result:", "hi"}},
		{"skipped", toolflow.Outcome{Tool: tools.Spec{Name: "write"}, Skipped: "rejected by user", Text: "Tool: write"},
			[]string{"⊘ write", "rejected by user"}},
		{"error no text", toolflow.Outcome{Err: errors.New("unknown tool")}, []string{"✗ tool", "unknown tool"}},
		{"narrative", toolflow.Outcome{Tool: tools.Spec{Name: "search"}, Narrative: true, Text: "# Findings\n\nTwo **matches**."},
			[]string{"✓ search", "Findings", "matches"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			NewPrinter(&buf, Options{}).OnToolResult(tt.out)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q missing %q", buf.String(), w)
				}
			}
		})
	}
}

func TestPrinter_OnDone(t *testing.T) {
	t.Parallel()

	var done []orchestrator.Outcome
	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{OnDone: func(o orchestrator.Outcome) { done = append(done, o) }})
	p.OnToken(event.Token{Content: "partial"})
	p.OnDone(orchestrator.Outcome{
		SessionID: "s1",
		Status:    orchestrator.StatusCancelled,
		Rejected: []approval.Resolution{{
			Proposal: approval.Proposal{ToolName: "write", Parameters: tools.Values{{Name: "path", Value: "x"}}},
			Reason:   approval.ReasonCancelled,
		}},
		SkippedFrames: 2,
	})

	out := buf.String()
	for _, want := range []string{"partial\n", "session s1 cancelled", "write(path=x) not run: cancelled", "2 malformed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if len(done) != 1 {
		t.Errorf("OnDone callback called %d times", len(done))
	}
}

func TestMarkdown_RenderCaches(t *testing.T) {
	t.Parallel()

	m := NewMarkdown(false)
	if got := m.Render("", 40); got != "" {
		t.Errorf("empty input rendered %q", got)
	}
	first := m.Render("# Title\n\nbody", 40)
	if !strings.Contains(first, "Title") || !strings.Contains(first, "body") {
		t.Errorf("render lost content: %q", first)
	}
	if second := m.Render("# Title\n\nbody", 40); second != first {
		t.Errorf("cached render differs: %q vs %q", second, first)
	}
	if len(m.cache) != 1 {
		t.Errorf("cache size = %d, want 1", len(m.cache))
	}
}

func TestParseAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		answer   string
		approved bool
		reason   string
	}{
		{"y\n", true, ""},
		{"YES", true, ""},
		{"", false, ""},
		{"n", false, ""},
		{"  not in prod \n", false, "not in prod"},
	}
	for _, tt := range tests {
		d := ParseAnswer("key", tt.answer)
		if d.RequestID != "key" || d.Approved != tt.approved || d.Reason != tt.reason {
			t.Errorf("ParseAnswer(%q) = %+v", tt.answer, d)
		}
	}
}

func TestPrompter_Ask(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	pr := NewPrompter(strings.NewReader("y\nno thanks\n"), &out)
	p := approval.Proposal{Key: "sig", ToolName: "write", Parameters: tools.Values{{Name: "path", Value: "a.txt"}}}

	d, err := pr.Ask(p)
	if err != nil || !d.Approved || d.RequestID != "sig" {
		t.Fatalf("first Ask = %+v, %v", d, err)
	}
	d, err = pr.Ask(p)
	if err != nil || d.Approved || d.Reason != "no thanks" {
		t.Fatalf("second Ask = %+v, %v", d, err)
	}
	if _, err := pr.Ask(p); err == nil {
		t.Error("expected error at end of input")
	}
	if !strings.Contains(out.String(), "write(path=a.txt)") {
		t.Errorf("prompt missing proposal: %q", out.String())
	}
}
