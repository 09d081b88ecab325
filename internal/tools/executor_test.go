// ABOUTME: Tests for the tool executor: argument validation, typed failures, panics, timeouts
// ABOUTME: Builtins run against temp directories and an in-process HTTP server

package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigduu/copilot-client-app-sub002/internal/cache"
)

func TestExecutor_FailuresAreExecutionErrors(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	mustRegister(t, r, &Tool{
		Spec: oneParam("boom"),
		Execute: func(context.Context, Values) (string, error) {
			return "", errors.New("disk on fire")
		},
	})
	mustRegister(t, r, &Tool{
		Spec: oneParam("panicky"),
		Execute: func(context.Context, Values) (string, error) {
			panic("unexpected nil")
		},
	})
	x := NewExecutor(r, 0)

	tests := []struct {
		name    string
		tool    string
		args    Values
		wantMsg string
	}{
		{"unknown tool", "bom", Values{{"arg", "x"}}, "did you mean boom"},
		{"missing argument", "boom", nil, "expected 1 argument"},
		{"wrong argument name", "boom", Values{{"other", "x"}}, `expected "arg"`},
		{"tool error", "boom", Values{{"arg", "x"}}, "disk on fire"},
		{"panic recovered", "panicky", Values{{"arg", "x"}}, "panic: unexpected nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := x.Execute(context.Background(), tt.tool, tt.args)
			var execErr *ExecutionError
			if !errors.As(err, &execErr) {
				t.Fatalf("err = %v (%T), want *ExecutionError", err, err)
			}
			if execErr.Tool != tt.tool {
				t.Errorf("Tool = %q, want %q", execErr.Tool, tt.tool)
			}
			if !strings.Contains(execErr.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", execErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestExecutor_Timeout(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	mustRegister(t, r, &Tool{
		Spec: oneParam("slow"),
		Execute: func(ctx context.Context, _ Values) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	})

	_, err := NewExecutor(r, 10*time.Millisecond).Execute(context.Background(), "slow", Values{{"arg", "x"}})
	var execErr *ExecutionError
	if !errors.As(err, &execErr) || !strings.HasPrefix(execErr.Message, "timed out") {
		t.Fatalf("err = %v, want timeout ExecutionError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("ExecutionError should unwrap to context.DeadlineExceeded")
	}
}

func TestExecutor_BuiltinsOnDisk(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("alpha\nneedle here\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "blob.bin"), []byte{0, 1, 2}, 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := RegisterBuiltins(r, BuiltinConfig{Root: root}); err != nil {
		t.Fatal(err)
	}
	x := NewExecutor(r, 0)
	ctx := context.Background()

	res, err := x.Execute(ctx, "search", Values{{"query", "needle"}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(res.Output, "notes.txt:2:needle here") {
		t.Errorf("search output = %q", res.Output)
	}

	res, err = x.Execute(ctx, "read", Values{{"path", "notes.txt"}})
	if err != nil || !strings.Contains(res.Output, "alpha") {
		t.Errorf("read = %q, %v", res.Output, err)
	}

	if _, err := x.Execute(ctx, "read", Values{{"path", "blob.bin"}}); err == nil {
		t.Error("expected binary file error")
	}

	res, err = x.Execute(ctx, "write", Values{{"path", "sub/out.txt"}, {"content", "hi there"}})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "sub", "out.txt"))
	if err != nil || string(data) != "hi there" {
		t.Errorf("written = %q, %v", data, err)
	}

	res, err = x.Execute(ctx, "ls", Values{{"path", "."}})
	if err != nil || !strings.Contains(res.Output, "d ") || !strings.Contains(res.Output, "sub") {
		t.Errorf("ls = %q, %v", res.Output, err)
	}
}

func TestWebFetch_CachesPages(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>Title</h1><p>Hello <strong>world</strong></p></body></html>`))
	}))
	defer srv.Close()

	r := NewRegistry()
	if err := RegisterBuiltins(r, BuiltinConfig{
		HTTPClient: srv.Client(),
		Pages:      cache.New[string, string](cache.Options{}),
	}); err != nil {
		t.Fatal(err)
	}
	x := NewExecutor(r, 0)

	for range 2 {
		res, err := x.Execute(context.Background(), "webfetch", Values{{"url", srv.URL}})
		if err != nil {
			t.Fatalf("webfetch: %v", err)
		}
		if !strings.Contains(res.Output, "# Title") || !strings.Contains(res.Output, "**world**") {
			t.Errorf("output = %q", res.Output)
		}
		if res.DisplayPreference != "markdown" {
			t.Errorf("display preference = %q", res.DisplayPreference)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestHtmlToMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		html    string
		want    string
		notWant string
	}{
		{"heading", `<h1>Title</h1>`, "# Title", ""},
		{"skips script", `<script>alert('x')</script><p>Content</p>`, "Content", "alert"},
		{"links", `<a href="https://example.com">Click here</a>`, "[Click here](https://example.com)", ""},
		{"lists", `<ul><li>Item 1</li></ul>`, "- Item 1", ""},
		{"inline code", `<p>Use <code>go test</code></p>`, "`go test`", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			md := htmlToMarkdown("<html><body>" + tt.html + "</body></html>")
			if !strings.Contains(md, tt.want) {
				t.Errorf("got %q, want %q", md, tt.want)
			}
			if tt.notWant != "" && strings.Contains(md, tt.notWant) {
				t.Errorf("got %q, must not contain %q", md, tt.notWant)
			}
		})
	}
}

func oneParam(name string) Spec {
	return Spec{
		Name:     name,
		Params:   []Param{{Name: "arg"}},
		Strategy: StrategyDeterministic,
		Rule:     Rule{Kind: RuleWhole},
	}
}

func mustRegister(t *testing.T, r *Registry, tool *Tool) {
	t.Helper()
	if err := r.Register(tool); err != nil {
		t.Fatalf("Register(%s): %v", tool.Name, err)
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"https://example.com/a", "https://example.com/a", false},
		{"http://example.com/a", "https://example.com/a", false},
		{"http://127.0.0.1:8080/x", "http://127.0.0.1:8080/x", false},
		{"http://localhost/x", "http://localhost/x", false},
		{"  https://example.com  ", "https://example.com", false},
		{"ftp://example.com", "", true},
		{"https://", "", true},
		{"example.com", "", true},
	}
	for _, tt := range tests {
		got, err := normalizeURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("normalizeURL(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("normalizeURL(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
