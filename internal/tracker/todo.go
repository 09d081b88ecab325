// ABOUTME: Todo-list tracker: mirrors the agent's checklist from todo_* events of one session
// ABOUTME: Replaces on updated, patches by id on progress, and renders the list for prompts

package tracker

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bigduu/copilot-client-app-sub002/internal/event"
	"github.com/bigduu/copilot-client-app-sub002/internal/log"
)

// Evaluation is the state of the most recent todo evaluation pass.
type Evaluation struct {
	Running      bool
	ItemsCount   int
	UpdatesCount int
	Reasoning    string
}

// Completion records the todo_list_completed summary.
type Completion struct {
	TotalRounds    int
	TotalToolCalls int
}

// Todo tracks one session's todo list. Safe for concurrent reads while the
// session loop feeds it events.
type Todo struct {
	event.NopSink

	mu         sync.RWMutex
	list       *event.TodoList
	eval       Evaluation
	completion *Completion
	now        func() time.Time
}

// NewTodo creates an empty todo tracker.
func NewTodo() *Todo {
	return &Todo{now: time.Now}
}

// Observe feeds e to the tracker; events it does not care about are ignored.
func (t *Todo) Observe(e event.Event) { e.Dispatch(t) }

// List returns a copy of the current list; ok is false before the first update.
func (t *Todo) List() (event.TodoList, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.list == nil {
		return event.TodoList{}, false
	}
	return cloneList(*t.list), true
}

// Evaluation returns the last evaluation state.
func (t *Todo) Evaluation() Evaluation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.eval
}

// Completion returns the completion summary once the list completed.
func (t *Todo) Completion() (Completion, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.completion == nil {
		return Completion{}, false
	}
	return *t.completion, true
}

func (t *Todo) OnTodoListUpdated(e event.TodoListUpdated) {
	list := cloneList(e.TodoList)
	if err := event.CheckTodoDependencies(list); err != nil {
		log.Warn("tracker: todo list %q: %v", list.SessionID, err)
	}

	t.mu.Lock()
	t.list = &list
	t.completion = nil
	t.mu.Unlock()
}

func (t *Todo) OnTodoItemProgress(e event.TodoItemProgress) {
	if !e.Status.Valid() {
		log.Warn("tracker: item %s: unknown status %q", e.ItemID, e.Status)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.list == nil {
		log.Warn("tracker: progress for item %s before any todo list", e.ItemID)
		return
	}
	idx := slices.IndexFunc(t.list.Items, func(it event.TodoItem) bool { return it.ID == e.ItemID })
	if idx < 0 {
		log.Warn("tracker: progress for unknown item %s", e.ItemID)
		return
	}

	item := &t.list.Items[idx]
	item.Status = e.Status
	if e.Notes != "" {
		item.Notes = e.Notes
	}
	t.list.UpdatedAt = t.now()

	if err := event.CheckTodoDependencies(*t.list); err != nil {
		log.Warn("tracker: todo list %q: %v", t.list.SessionID, err)
	}
}

func (t *Todo) OnTodoListCompleted(e event.TodoListCompleted) {
	t.mu.Lock()
	t.completion = &Completion{TotalRounds: e.TotalRounds, TotalToolCalls: e.TotalToolCalls}
	t.mu.Unlock()
	log.Info("tracker: todo list for %s completed after %d rounds, %d tool calls", e.SessionID, e.TotalRounds, e.TotalToolCalls)
}

func (t *Todo) OnTodoEvaluationStarted(e event.TodoEvaluationStarted) {
	t.mu.Lock()
	t.eval = Evaluation{Running: true, ItemsCount: e.ItemsCount}
	t.mu.Unlock()
}

func (t *Todo) OnTodoEvaluationCompleted(e event.TodoEvaluationCompleted) {
	t.mu.Lock()
	t.eval.Running = false
	t.eval.UpdatesCount = e.UpdatesCount
	t.eval.Reasoning = e.Reasoning
	t.mu.Unlock()
}

// FormatForPrompt renders the list as a checklist with a progress line.
// It returns "" before the first update.
func (t *Todo) FormatForPrompt() string {
	list, ok := t.List()
	if !ok {
		return ""
	}
	return FormatList(list)
}

// FormatList renders list as a markdown checklist.
func FormatList(list event.TodoList) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Current Task List: %s\n\n", list.Title)

	done := 0
	for _, it := range list.Items {
		if it.Status == event.TodoCompleted {
			done++
		}
		fmt.Fprintf(&b, "%s %s: %s\n", statusIcon(it.Status), it.ID, it.Description)
		if it.Notes != "" {
			fmt.Fprintf(&b, "    Notes: %s\n", it.Notes)
		}
	}
	fmt.Fprintf(&b, "\nProgress: %d/%d tasks completed\n", done, len(list.Items))
	return b.String()
}

func statusIcon(s event.TodoStatus) string {
	switch s {
	case event.TodoInProgress:
		return "[/]"
	case event.TodoCompleted:
		return "[x]"
	case event.TodoBlocked:
		return "[!]"
	default:
		return "[ ]"
	}
}

func cloneList(l event.TodoList) event.TodoList {
	items := make([]event.TodoItem, len(l.Items))
	for i, it := range l.Items {
		it.DependsOn = slices.Clone(it.DependsOn)
		items[i] = it
	}
	l.Items = items
	return l
}
