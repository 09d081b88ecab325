// ABOUTME: YAML tool manifest: per-tool overrides layered onto registered declarations
// ABOUTME: Only keys present in the file change; the tool implementation is always kept

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bigduu/copilot-client-app-sub002/internal/log"
	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

// Manifest is a parsed tools.yaml. Entries keep their YAML nodes so they can
// be overlaid onto existing declarations.
type Manifest struct {
	Path    string
	entries []manifestEntry
}

type manifestEntry struct {
	name string
	node yaml.Node
}

type manifestFile struct {
	Tools []yaml.Node `yaml:"tools"`
}

// Names returns the tool names in file order.
func (m *Manifest) Names() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.name
	}
	return out
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tool manifest: %w", err)
	}
	m, err := ParseManifest(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// ParseManifest decodes a manifest document.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var f manifestFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing tool manifest: %w", err)
	}

	m := &Manifest{}
	seen := make(map[string]bool, len(f.Tools))
	for i, n := range f.Tools {
		var head struct {
			Name string `yaml:"name"`
		}
		if err := n.Decode(&head); err != nil {
			return nil, fmt.Errorf("tool entry %d (line %d): %w", i, n.Line, err)
		}
		if head.Name == "" {
			return nil, fmt.Errorf("tool entry %d (line %d): missing name", i, n.Line)
		}
		if seen[head.Name] {
			return nil, fmt.Errorf("tool entry %d (line %d): duplicate tool %q", i, n.Line, head.Name)
		}
		seen[head.Name] = true
		m.entries = append(m.entries, manifestEntry{name: head.Name, node: n})
	}
	return m, nil
}

// Overlay returns the registered declarations with each manifest entry
// decoded on top. Unknown tool names are errors.
func (m *Manifest) Overlay(reg *tools.Registry) ([]tools.Spec, error) {
	specs := make([]tools.Spec, 0, len(m.entries))
	for _, e := range m.entries {
		cur := reg.Get(e.name)
		if cur == nil {
			return nil, &tools.UnknownToolError{Name: e.name, Suggestions: reg.Suggest(e.name)}
		}
		spec := cur.Spec
		spec.Params = append([]tools.Param(nil), cur.Params...)
		if err := e.node.Decode(&spec); err != nil {
			return nil, fmt.Errorf("tool %s (line %d): %w", e.name, e.node.Line, err)
		}
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", e.node.Line, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Apply overlays the manifest onto reg. Either every entry applies or none do.
func (m *Manifest) Apply(reg *tools.Registry) error {
	specs, err := m.Overlay(reg)
	if err != nil {
		return err
	}
	if err := reg.Apply(specs); err != nil {
		return err
	}
	log.Info("config: applied %d tool declaration(s) from %s", len(specs), m.source())
	return nil
}

// WriteManifest serializes the given declarations as a manifest, suitable as
// a starting point for editing.
func WriteManifest(w io.Writer, specs []tools.Spec) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(struct {
		Tools []tools.Spec `yaml:"tools"`
	}{specs}); err != nil {
		return fmt.Errorf("encoding tool manifest: %w", err)
	}
	return enc.Close()
}

func (m *Manifest) source() string {
	if m.Path == "" {
		return "manifest"
	}
	return m.Path
}
