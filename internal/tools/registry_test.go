// ABOUTME: Tests for tool registry: registration, lookup, suggestions, and manifest overlay
// ABOUTME: Verifies all builtin tools are present with correct attributes

package tools

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := RegisterBuiltins(r, BuiltinConfig{Root: t.TempDir()}); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	return r
}

func TestRegisterBuiltins_RegistersAll(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	want := []string{"ls", "read", "search", "webfetch", "write"}
	if got := r.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegistry_Get_ReturnsNilForUnknown(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	if got := r.Get("nonexistent"); got != nil {
		t.Errorf("expected nil for unknown tool, got %v", got)
	}
}

func TestRegistry_ReadOnly_FiltersCorrectly(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	for _, tool := range r.ReadOnly() {
		if !tool.ReadOnly {
			t.Errorf("ReadOnly() returned non-read-only tool %q", tool.Name)
		}
		if tool.Name == "write" {
			t.Error("write must not be read-only")
		}
	}
	if w := r.Get("write"); w == nil || !w.RequiresApproval {
		t.Error("write should require approval")
	}
}

func TestRegistry_Remove_WithSpecifier(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	r.Remove("write(/etc/*)")
	if r.Get("write") != nil {
		t.Error("write should be removed")
	}
}

func TestRegistry_RegisterRejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tool *Tool
	}{
		{"no name", &Tool{Execute: noop}},
		{"no implementation", &Tool{Spec: Spec{Name: "x", Params: []Param{{Name: "a"}}, Strategy: StrategyDeterministic, Rule: Rule{Kind: RuleWhole}}}},
		{"whole with two params", &Tool{Spec: Spec{Name: "x", Params: []Param{{Name: "a"}, {Name: "b"}}, Strategy: StrategyDeterministic, Rule: Rule{Kind: RuleWhole}}, Execute: noop}},
		{"duplicate param", &Tool{Spec: Spec{Name: "x", Params: []Param{{Name: "a"}, {Name: "a"}}, Strategy: StrategyDeterministic, Rule: Rule{Kind: RuleFirstSpace}}, Execute: noop}},
		{"model assisted without prompt", &Tool{Spec: Spec{Name: "x", Params: []Param{{Name: "a"}}, Strategy: StrategyModelAssisted}, Execute: noop}},
		{"unknown strategy", &Tool{Spec: Spec{Name: "x", Strategy: "guess"}, Execute: noop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := NewRegistry().Register(tt.tool); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegistry_Suggest(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	tests := []struct {
		query string
		want  string
	}{
		{"serch", "search"},
		{"searchx", "search"},
		{"wf", "webfetch"},
	}
	for _, tt := range tests {
		got := r.Suggest(tt.query)
		if !slices.Contains(got, tt.want) {
			t.Errorf("Suggest(%q) = %v, want it to contain %q", tt.query, got, tt.want)
		}
	}
}

func TestRegistry_ApplyOverlaysDeclaration(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	orig := r.Get("search")

	err := r.Apply([]Spec{{
		Name:     "search",
		Params:   []Param{{Name: "query"}},
		Strategy: StrategyModelAssisted,
		Prompt:   "Extract a search query from: {{.Description}}",
	}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got := r.Get("search")
	if got.Strategy != StrategyModelAssisted {
		t.Errorf("strategy = %q, want model_assisted", got.Strategy)
	}
	if got.Execute == nil || orig.Execute == nil {
		t.Fatal("implementation lost")
	}

	var unknown *UnknownToolError
	if err := r.Apply([]Spec{{Name: "serch"}}); !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want *UnknownToolError", err)
	}
	if !slices.Contains(unknown.Suggestions, "search") {
		t.Errorf("suggestions = %v", unknown.Suggestions)
	}
}

func noop(context.Context, Values) (string, error) { return "", nil }
