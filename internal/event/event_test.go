// ABOUTME: Tests for the event codec, sink dispatch, and invariant helpers
// ABOUTME: Covers wire decoding per variant, unknown types, budget and todo assertions

package event

import (
	"errors"
	"strings"
	"testing"
)

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		check func(t *testing.T, e Event)
	}{
		{
			name:  "token",
			input: `{"type":"token","content":"hel"}`,
			check: func(t *testing.T, e Event) {
				if tok, ok := e.(Token); !ok || tok.Content != "hel" {
					t.Errorf("got %#v", e)
				}
			},
		},
		{
			name:  "tool start keeps raw arguments",
			input: `{"type":"tool_start","tool_call_id":"A","tool_name":"read","arguments":{"path":"/tmp/x"}}`,
			check: func(t *testing.T, e Event) {
				ts, ok := e.(ToolStart)
				if !ok || ts.ToolCallID != "A" || ts.ToolName != "read" {
					t.Fatalf("got %#v", e)
				}
				if !strings.Contains(string(ts.Arguments), `"/tmp/x"`) {
					t.Errorf("arguments = %s", ts.Arguments)
				}
			},
		},
		{
			name:  "tool complete",
			input: `{"type":"tool_complete","tool_call_id":"A","result":{"success":true,"result":"ok"}}`,
			check: func(t *testing.T, e Event) {
				tc, ok := e.(ToolComplete)
				if !ok || !tc.Result.Success || tc.Result.Result != "ok" {
					t.Errorf("got %#v", e)
				}
			},
		},
		{
			name:  "approval required with parameters",
			input: `{"type":"tool_approval_required","request_id":"r1","tool_name":"bash","parameters":[{"name":"command","value":"ls"}]}`,
			check: func(t *testing.T, e Event) {
				ar, ok := e.(ToolApprovalRequired)
				if !ok || ar.RequestID != "r1" || len(ar.Parameters) != 1 || ar.Parameters[0].Value != "ls" {
					t.Errorf("got %#v", e)
				}
			},
		},
		{
			name:  "todo progress",
			input: `{"type":"todo_list_item_progress","session_id":"s","item_id":"2","status":"in_progress"}`,
			check: func(t *testing.T, e Event) {
				p, ok := e.(TodoItemProgress)
				if !ok || p.ItemID != "2" || p.Status != TodoInProgress {
					t.Errorf("got %#v", e)
				}
			},
		},
		{
			name:  "budget",
			input: `{"type":"token_budget_updated","usage":{"system_tokens":1,"summary_tokens":2,"window_tokens":3,"total_tokens":6,"budget_limit":12,"truncation_occurred":false,"segments_removed":0}}`,
			check: func(t *testing.T, e Event) {
				b, ok := e.(TokenBudgetUpdated)
				if !ok || b.Usage.TotalTokens != 6 || b.Usage.UsagePercentage() != 50 {
					t.Errorf("got %#v", e)
				}
			},
		},
		{
			name:  "error terminal",
			input: `{"type":"error","message":"boom"}`,
			check: func(t *testing.T, e Event) {
				se, ok := e.(StreamError)
				if !ok || se.Message != "boom" || !IsTerminal(e) {
					t.Errorf("got %#v", e)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, err := Unmarshal([]byte(tt.input))
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			tt.check(t, e)
		})
	}
}

func TestUnmarshalRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "unknown type", input: `{"type":"telepathy"}`, wantErr: ErrUnknownType},
		{name: "missing type", input: `{"content":"x"}`, wantErr: ErrMissingType},
		{name: "not json", input: `{"type":`},
		{name: "wrong field type", input: `{"type":"token","content":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Unmarshal([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMarshalCarriesType(t *testing.T) {
	t.Parallel()

	data, err := Marshal(Complete{Usage: TokenUsage{TotalTokens: 3}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"type":"complete",`) {
		t.Errorf("data = %s", data)
	}

	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c, ok := back.(Complete); !ok || c.Usage.TotalTokens != 3 {
		t.Errorf("round trip = %#v", back)
	}
}

func TestFrameEncoding(t *testing.T) {
	t.Parallel()

	data, err := Frame(Token{Content: "x"})
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if string(data) != "data: {\"type\":\"token\",\"content\":\"x\"}\n\n" {
		t.Errorf("frame = %q", data)
	}
}

func TestDispatchRoutesToMatchingMethod(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	events := []Event{
		ToolStart{ToolCallID: "A"},
		Token{Content: "t"},
		ToolComplete{ToolCallID: "A"},
		Complete{},
	}
	for _, e := range events {
		e.Dispatch(rec)
	}

	if len(rec.Events) != len(events) {
		t.Fatalf("recorded %d events, want %d", len(rec.Events), len(events))
	}
	for i := range events {
		if rec.Events[i].Type() != events[i].Type() {
			t.Errorf("event[%d] = %s, want %s", i, rec.Events[i].Type(), events[i].Type())
		}
	}
}

func TestCheckBudget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		usage   BudgetUsage
		wantErr []error
	}{
		{
			name:  "consistent",
			usage: BudgetUsage{SystemTokens: 10, SummaryTokens: 5, WindowTokens: 85, TotalTokens: 100, TruncationOccurred: true, SegmentsRemoved: 2},
		},
		{
			name:    "truncation without removed segments",
			usage:   BudgetUsage{SystemTokens: 1, TotalTokens: 1, TruncationOccurred: true, SegmentsRemoved: 0},
			wantErr: []error{ErrTruncationWithoutSegments},
		},
		{
			name:    "total mismatch",
			usage:   BudgetUsage{SystemTokens: 1, SummaryTokens: 1, WindowTokens: 1, TotalTokens: 4},
			wantErr: []error{ErrBudgetAccounting},
		},
		{
			name:    "both",
			usage:   BudgetUsage{TotalTokens: 9, TruncationOccurred: true},
			wantErr: []error{ErrTruncationWithoutSegments, ErrBudgetAccounting},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckBudget(tt.usage)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("err = %v, want %v", err, want)
				}
			}
		})
	}
}

func TestCheckTodoDependencies(t *testing.T) {
	t.Parallel()

	list := TodoList{Items: []TodoItem{
		{ID: "1", Status: TodoCompleted},
		{ID: "2", Status: TodoInProgress, DependsOn: []string{"1"}},
		{ID: "3", Status: TodoInProgress, DependsOn: []string{"4"}},
		{ID: "4", Status: TodoPending},
	}}

	err := CheckTodoDependencies(list)
	if !errors.Is(err, ErrUnmetDependency) {
		t.Fatalf("err = %v, want ErrUnmetDependency", err)
	}
	if !strings.Contains(err.Error(), "3 waits on 4") {
		t.Errorf("err = %v, want mention of item 3", err)
	}
	if strings.Contains(err.Error(), "2 waits") {
		t.Errorf("item 2 has satisfied dependencies: %v", err)
	}
}
