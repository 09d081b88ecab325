// ABOUTME: Tool registry: stores, queries, and overlays declarations onto registered tools
// ABOUTME: Unknown names get fuzzy "did you mean" suggestions

package tools

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
)

// Registry manages the collection of available tools. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(t *Tool) error {
	if err := t.Spec.Validate(); err != nil {
		return err
	}
	if t.Execute == nil {
		return fmt.Errorf("tool %s: no implementation", t.Name)
	}
	r.mu.Lock()
	r.tools[t.Name] = t
	r.mu.Unlock()
	return nil
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// All returns every registered tool sorted by name.
func (r *Registry) All() []*Tool {
	r.mu.RLock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Tool) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	all := r.All()
	out := make([]string, len(all))
	for i, t := range all {
		out[i] = t.Name
	}
	return out
}

// ReadOnly returns only tools whose ReadOnly flag is true.
func (r *Registry) ReadOnly() []*Tool {
	var out []*Tool
	for _, t := range r.All() {
		if t.ReadOnly {
			out = append(out, t)
		}
	}
	return out
}

// Remove deletes a tool from the registry by name.
// Supports "Tool(specifier)" format; the specifier is ignored for removal.
func (r *Registry) Remove(spec string) {
	name := spec
	if idx := strings.Index(spec, "("); idx > 0 {
		name = spec[:idx]
	}
	r.mu.Lock()
	delete(r.tools, name)
	r.mu.Unlock()
}

// Suggest returns registered names that fuzzy-match name, best first.
func (r *Registry) Suggest(name string) []string {
	if name == "" {
		return nil
	}
	names := r.Names()
	matches := fuzzy.Find(name, names)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	if len(out) > 0 {
		return out
	}

	// fuzzy.Find needs the query as a subsequence; also try the reverse so
	// that over-long names ("searchx") still find their tool.
	for _, n := range names {
		if len(fuzzy.Find(n, []string{name})) > 0 {
			out = append(out, n)
		}
	}
	return out
}

// Apply overlays manifest declarations onto registered tools. The
// implementation is kept; everything declarative is replaced. A spec for an
// unknown tool is an error.
func (r *Registry) Apply(specs []Spec) error {
	for _, s := range specs {
		cur := r.Get(s.Name)
		if cur == nil {
			return &UnknownToolError{Name: s.Name, Suggestions: r.Suggest(s.Name)}
		}
		next := &Tool{Spec: s, Execute: cur.Execute}
		if err := r.Register(next); err != nil {
			return err
		}
	}
	return nil
}

// UnknownToolError reports a name that is not registered.
type UnknownToolError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownToolError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown tool %q", e.Name)
	}
	return fmt.Sprintf("unknown tool %q (did you mean %s?)", e.Name, strings.Join(e.Suggestions, ", "))
}
