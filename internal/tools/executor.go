// ABOUTME: ToolExecutor: validates arguments against the declaration and runs the tool
// ABOUTME: Every failure, including panics in tool code, comes back as an *ExecutionError

package tools

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/bigduu/copilot-client-app-sub002/internal/log"
)

// Result is the outcome of a successful tool execution.
type Result struct {
	Tool              string
	Args              Values
	Output            string
	DisplayPreference string
	Duration          time.Duration
}

// ExecutionError is a tool failure carried as a value.
type ExecutionError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor runs tools from a Registry.
type Executor struct {
	registry *Registry
	timeout  time.Duration
}

// NewExecutor creates an Executor. A zero timeout means no per-call deadline.
func NewExecutor(r *Registry, timeout time.Duration) *Executor {
	return &Executor{registry: r, timeout: timeout}
}

// Registry returns the registry the executor resolves names against.
func (x *Executor) Registry() *Registry { return x.registry }

// Execute runs the named tool. The error, when non-nil, is always an
// *ExecutionError.
func (x *Executor) Execute(ctx context.Context, name string, args Values) (res Result, err error) {
	tool := x.registry.Get(name)
	if tool == nil {
		unknown := &UnknownToolError{Name: name, Suggestions: x.registry.Suggest(name)}
		return Result{}, &ExecutionError{Tool: name, Message: unknown.Error(), Err: unknown}
	}
	if err := checkArgs(tool.Spec, args); err != nil {
		return Result{}, &ExecutionError{Tool: name, Message: err.Error(), Err: err}
	}

	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("tool %s panicked: %v\n%s", name, r, debug.Stack())
			res = Result{}
			err = &ExecutionError{Tool: name, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	out, runErr := tool.Execute(ctx, args)
	if runErr != nil {
		msg := runErr.Error()
		if errors.Is(runErr, context.DeadlineExceeded) {
			msg = "timed out: " + msg
		}
		return Result{}, &ExecutionError{Tool: name, Message: msg, Err: runErr}
	}

	return Result{
		Tool:              name,
		Args:              args,
		Output:            out,
		DisplayPreference: tool.DisplayPreference,
		Duration:          time.Since(start),
	}, nil
}

// checkArgs requires exactly the declared parameters, in declaration order.
func checkArgs(spec Spec, args Values) error {
	if len(args) != len(spec.Params) {
		return fmt.Errorf("expected %d argument(s) %v, got %d", len(spec.Params), spec.ParamNames(), len(args))
	}
	for i, p := range spec.Params {
		if args[i].Name != p.Name {
			return fmt.Errorf("argument %d is %q, expected %q", i, args[i].Name, p.Name)
		}
	}
	return nil
}
