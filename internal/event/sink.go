// ABOUTME: Sink helpers: a no-op base for partial sinks and an ordered recording sink
// ABOUTME: Embedding NopSink opts a type out of compile-time exhaustiveness

package event

// NopSink implements Sink with empty methods. Embed it only when a sink
// deliberately ignores most variants.
type NopSink struct{}

func (NopSink) OnToken(Token)                                     {}
func (NopSink) OnToolStart(ToolStart)                             {}
func (NopSink) OnToolComplete(ToolComplete)                       {}
func (NopSink) OnToolError(ToolError)                             {}
func (NopSink) OnToolApprovalRequired(ToolApprovalRequired)       {}
func (NopSink) OnNeedClarification(NeedClarification)             {}
func (NopSink) OnTodoListUpdated(TodoListUpdated)                 {}
func (NopSink) OnTodoItemProgress(TodoItemProgress)               {}
func (NopSink) OnTodoListCompleted(TodoListCompleted)             {}
func (NopSink) OnTodoEvaluationStarted(TodoEvaluationStarted)     {}
func (NopSink) OnTodoEvaluationCompleted(TodoEvaluationCompleted) {}
func (NopSink) OnTokenBudgetUpdated(TokenBudgetUpdated)           {}
func (NopSink) OnContextSummarized(ContextSummarized)             {}
func (NopSink) OnComplete(Complete)                               {}
func (NopSink) OnError(StreamError)                               {}

// Recorder is a Sink that appends every event it receives, in order.
type Recorder struct {
	Events []Event
}

func (r *Recorder) add(e Event) { r.Events = append(r.Events, e) }

func (r *Recorder) OnToken(e Token)                                     { r.add(e) }
func (r *Recorder) OnToolStart(e ToolStart)                             { r.add(e) }
func (r *Recorder) OnToolComplete(e ToolComplete)                       { r.add(e) }
func (r *Recorder) OnToolError(e ToolError)                             { r.add(e) }
func (r *Recorder) OnToolApprovalRequired(e ToolApprovalRequired)       { r.add(e) }
func (r *Recorder) OnNeedClarification(e NeedClarification)             { r.add(e) }
func (r *Recorder) OnTodoListUpdated(e TodoListUpdated)                 { r.add(e) }
func (r *Recorder) OnTodoItemProgress(e TodoItemProgress)               { r.add(e) }
func (r *Recorder) OnTodoListCompleted(e TodoListCompleted)             { r.add(e) }
func (r *Recorder) OnTodoEvaluationStarted(e TodoEvaluationStarted)     { r.add(e) }
func (r *Recorder) OnTodoEvaluationCompleted(e TodoEvaluationCompleted) { r.add(e) }
func (r *Recorder) OnTokenBudgetUpdated(e TokenBudgetUpdated)           { r.add(e) }
func (r *Recorder) OnContextSummarized(e ContextSummarized)             { r.add(e) }
func (r *Recorder) OnComplete(e Complete)                               { r.add(e) }
func (r *Recorder) OnError(e StreamError)                               { r.add(e) }
