// ABOUTME: Agent event sum type: one struct per wire variant plus shared payload types
// ABOUTME: Every variant dispatches to a Sink method so new variants break non-exhaustive sinks

package event

import (
	"encoding/json"
	"time"

	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

// Type is the wire discriminator carried in the "type" field.
type Type string

const (
	TypeToken                   Type = "token"
	TypeToolStart               Type = "tool_start"
	TypeToolComplete            Type = "tool_complete"
	TypeToolError               Type = "tool_error"
	TypeToolApprovalRequired    Type = "tool_approval_required"
	TypeNeedClarification       Type = "need_clarification"
	TypeTodoListUpdated         Type = "todo_list_updated"
	TypeTodoItemProgress        Type = "todo_list_item_progress"
	TypeTodoListCompleted       Type = "todo_list_completed"
	TypeTodoEvaluationStarted   Type = "todo_evaluation_started"
	TypeTodoEvaluationCompleted Type = "todo_evaluation_completed"
	TypeTokenBudgetUpdated      Type = "token_budget_updated"
	TypeContextSummarized       Type = "context_summarized"
	TypeComplete                Type = "complete"
	TypeError                   Type = "error"
)

// Event is a decoded agent event. The set of implementations is closed:
// only this package can add variants.
//
//sumtype:decl
type Event interface {
	Type() Type
	// Dispatch calls the Sink method matching the concrete variant.
	Dispatch(Sink)
	sealed()
}

// Sink receives events, one method per variant.
type Sink interface {
	OnToken(Token)
	OnToolStart(ToolStart)
	OnToolComplete(ToolComplete)
	OnToolError(ToolError)
	OnToolApprovalRequired(ToolApprovalRequired)
	OnNeedClarification(NeedClarification)
	OnTodoListUpdated(TodoListUpdated)
	OnTodoItemProgress(TodoItemProgress)
	OnTodoListCompleted(TodoListCompleted)
	OnTodoEvaluationStarted(TodoEvaluationStarted)
	OnTodoEvaluationCompleted(TodoEvaluationCompleted)
	OnTokenBudgetUpdated(TokenBudgetUpdated)
	OnContextSummarized(ContextSummarized)
	OnComplete(Complete)
	OnError(StreamError)
}

// Token is an incremental piece of assistant text.
type Token struct {
	Content string `json:"content"`
}

// ToolStart announces that the agent began executing a tool call.
type ToolStart struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
}

// ToolComplete carries the result of a finished tool call.
type ToolComplete struct {
	ToolCallID string     `json:"tool_call_id"`
	Result     ToolResult `json:"result"`
}

// ToolError reports a failed tool call; the session continues.
type ToolError struct {
	ToolCallID string `json:"tool_call_id"`
	Error      string `json:"error"`
}

// ToolApprovalRequired asks for a decision on a server-side tool call.
// RequestID is the correlation id the decision must echo.
type ToolApprovalRequired struct {
	RequestID  string        `json:"request_id"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	ToolName   string        `json:"tool_name"`
	Parameters []tools.Value `json:"parameters"`
}

// NeedClarification is raised when the agent waits for a user answer.
type NeedClarification struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// TodoListUpdated replaces the session todo list wholesale.
type TodoListUpdated struct {
	TodoList TodoList `json:"todo_list"`
}

// TodoItemProgress patches a single todo item by id.
type TodoItemProgress struct {
	SessionID string     `json:"session_id"`
	ItemID    string     `json:"item_id"`
	Status    TodoStatus `json:"status"`
	Notes     string     `json:"notes,omitempty"`
}

// TodoListCompleted reports that the agent finished its todo list, with run
// totals. Item statuses are left as the progress events reported them.
type TodoListCompleted struct {
	SessionID      string `json:"session_id"`
	TotalRounds    int    `json:"total_rounds"`
	TotalToolCalls int    `json:"total_tool_calls"`
}

// TodoEvaluationStarted signals the agent is re-evaluating in-progress items.
type TodoEvaluationStarted struct {
	SessionID  string `json:"session_id"`
	ItemsCount int    `json:"items_count"`
}

// TodoEvaluationCompleted ends a todo evaluation pass.
type TodoEvaluationCompleted struct {
	SessionID    string `json:"session_id"`
	UpdatesCount int    `json:"updates_count"`
	Reasoning    string `json:"reasoning,omitempty"`
}

// TokenBudgetUpdated reports the context window accounting for the next call.
type TokenBudgetUpdated struct {
	Usage BudgetUsage `json:"usage"`
}

// ContextSummarized reports that older messages were folded into a summary.
type ContextSummarized struct {
	Summary            string `json:"summary"`
	MessagesSummarized int    `json:"messages_summarized"`
	TokensSaved        int    `json:"tokens_saved"`
}

// Complete is the successful terminal event.
type Complete struct {
	Usage TokenUsage `json:"usage"`
}

// StreamError is the failing terminal event.
type StreamError struct {
	Message string `json:"message"`
}

func (Token) Type() Type                   { return TypeToken }
func (ToolStart) Type() Type               { return TypeToolStart }
func (ToolComplete) Type() Type            { return TypeToolComplete }
func (ToolError) Type() Type               { return TypeToolError }
func (ToolApprovalRequired) Type() Type    { return TypeToolApprovalRequired }
func (NeedClarification) Type() Type       { return TypeNeedClarification }
func (TodoListUpdated) Type() Type         { return TypeTodoListUpdated }
func (TodoItemProgress) Type() Type        { return TypeTodoItemProgress }
func (TodoListCompleted) Type() Type       { return TypeTodoListCompleted }
func (TodoEvaluationStarted) Type() Type   { return TypeTodoEvaluationStarted }
func (TodoEvaluationCompleted) Type() Type { return TypeTodoEvaluationCompleted }
func (TokenBudgetUpdated) Type() Type      { return TypeTokenBudgetUpdated }
func (ContextSummarized) Type() Type       { return TypeContextSummarized }
func (Complete) Type() Type                { return TypeComplete }
func (StreamError) Type() Type             { return TypeError }

func (e Token) Dispatch(s Sink)                   { s.OnToken(e) }
func (e ToolStart) Dispatch(s Sink)               { s.OnToolStart(e) }
func (e ToolComplete) Dispatch(s Sink)            { s.OnToolComplete(e) }
func (e ToolError) Dispatch(s Sink)               { s.OnToolError(e) }
func (e ToolApprovalRequired) Dispatch(s Sink)    { s.OnToolApprovalRequired(e) }
func (e NeedClarification) Dispatch(s Sink)       { s.OnNeedClarification(e) }
func (e TodoListUpdated) Dispatch(s Sink)         { s.OnTodoListUpdated(e) }
func (e TodoItemProgress) Dispatch(s Sink)        { s.OnTodoItemProgress(e) }
func (e TodoListCompleted) Dispatch(s Sink)       { s.OnTodoListCompleted(e) }
func (e TodoEvaluationStarted) Dispatch(s Sink)   { s.OnTodoEvaluationStarted(e) }
func (e TodoEvaluationCompleted) Dispatch(s Sink) { s.OnTodoEvaluationCompleted(e) }
func (e TokenBudgetUpdated) Dispatch(s Sink)      { s.OnTokenBudgetUpdated(e) }
func (e ContextSummarized) Dispatch(s Sink)       { s.OnContextSummarized(e) }
func (e Complete) Dispatch(s Sink)                { s.OnComplete(e) }
func (e StreamError) Dispatch(s Sink)             { s.OnError(e) }

func (Token) sealed()                   {}
func (ToolStart) sealed()               {}
func (ToolComplete) sealed()            {}
func (ToolError) sealed()               {}
func (ToolApprovalRequired) sealed()    {}
func (NeedClarification) sealed()       {}
func (TodoListUpdated) sealed()         {}
func (TodoItemProgress) sealed()        {}
func (TodoListCompleted) sealed()       {}
func (TodoEvaluationStarted) sealed()   {}
func (TodoEvaluationCompleted) sealed() {}
func (TokenBudgetUpdated) sealed()      {}
func (ContextSummarized) sealed()       {}
func (Complete) sealed()                {}
func (StreamError) sealed()             {}

// IsTerminal reports whether e ends a session stream.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case Complete, StreamError:
		return true
	default:
		return false
	}
}

// ToolResult is the payload of a completed server-side tool call.
type ToolResult struct {
	Success           bool   `json:"success"`
	Result            string `json:"result"`
	DisplayPreference string `json:"display_preference,omitempty"`
}

// TokenUsage is the model usage reported on completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TodoStatus is the lifecycle state of a todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoBlocked    TodoStatus = "blocked"
)

// Valid reports whether s is a known status.
func (s TodoStatus) Valid() bool {
	switch s {
	case TodoPending, TodoInProgress, TodoCompleted, TodoBlocked:
		return true
	default:
		return false
	}
}

// TodoItem is one entry of an agent-maintained checklist.
type TodoItem struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      TodoStatus `json:"status"`
	DependsOn   []string   `json:"depends_on,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// TodoList is the checklist tracked alongside a session.
type TodoList struct {
	SessionID string     `json:"session_id"`
	Title     string     `json:"title"`
	Items     []TodoItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// BudgetUsage is the token accounting of a prepared context window.
type BudgetUsage struct {
	SystemTokens       int  `json:"system_tokens"`
	SummaryTokens      int  `json:"summary_tokens"`
	WindowTokens       int  `json:"window_tokens"`
	TotalTokens        int  `json:"total_tokens"`
	BudgetLimit        int  `json:"budget_limit"`
	TruncationOccurred bool `json:"truncation_occurred"`
	SegmentsRemoved    int  `json:"segments_removed"`
}

// UsagePercentage returns TotalTokens as a percentage of BudgetLimit.
func (u BudgetUsage) UsagePercentage() float64 {
	if u.BudgetLimit == 0 {
		return 0
	}
	return float64(u.TotalTokens) / float64(u.BudgetLimit) * 100
}
