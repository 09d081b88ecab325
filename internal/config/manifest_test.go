// ABOUTME: Tests for the tool manifest overlay and the reloading watcher
// ABOUTME: Overlays are checked against the builtin registry in a temp workspace

package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

func builtinRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	if err := tools.RegisterBuiltins(reg, tools.BuiltinConfig{Root: t.TempDir()}); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	return reg
}

func TestManifest_OverlayKeepsUnsetFields(t *testing.T) {
	t.Parallel()

	reg := builtinRegistry(t)
	before := reg.Get("read").Spec

	m, err := ParseManifest(strings.NewReader(`
tools:
  - name: read
    narrative: true
    summary_prompt: "Summarize briefly."
`))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if err := m.Apply(reg); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got := reg.Get("read")
	if !got.Narrative || got.SummaryPrompt != "Summarize briefly." {
		t.Errorf("overlay not applied: %+v", got.Spec)
	}
	if got.Description != before.Description || !got.ReadOnly || got.Rule.Kind != before.Rule.Kind {
		t.Errorf("unset fields changed: before %+v after %+v", before, got.Spec)
	}
	if got.Execute == nil {
		t.Error("implementation dropped")
	}
}

func TestManifest_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"missing name", "tools:\n  - narrative: true\n", "missing name"},
		{"duplicate", "tools:\n  - name: read\n  - name: read\n", "duplicate"},
		{"not yaml", "tools: [\n", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseManifest(strings.NewReader(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestManifest_EmptyDocument(t *testing.T) {
	t.Parallel()

	m, err := ParseManifest(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if len(m.Names()) != 0 {
		t.Errorf("Names = %v", m.Names())
	}
}

func TestManifest_UnknownToolSuggests(t *testing.T) {
	t.Parallel()

	reg := builtinRegistry(t)
	m, err := ParseManifest(strings.NewReader("tools:\n  - name: serch\n"))
	if err != nil {
		t.Fatal(err)
	}
	err = m.Apply(reg)
	var unknown *tools.UnknownToolError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want UnknownToolError", err)
	}
	if unknown.Name != "serch" {
		t.Errorf("Name = %q", unknown.Name)
	}
}

func TestManifest_InvalidOverlayLeavesRegistry(t *testing.T) {
	t.Parallel()

	reg := builtinRegistry(t)
	m, err := ParseManifest(strings.NewReader(`
tools:
  - name: ls
    narrative: true
  - name: search
    strategy: model_assisted
`))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Apply(reg); err == nil {
		t.Fatal("expected validation error for model_assisted without prompt")
	}
	if reg.Get("ls").Narrative {
		t.Error("first entry applied although a later entry was invalid")
	}
}

func TestWriteManifest_RoundTripsThroughOverlay(t *testing.T) {
	t.Parallel()

	reg := builtinRegistry(t)
	var specs []tools.Spec
	for _, tl := range reg.All() {
		specs = append(specs, tl.Spec)
	}

	var buf bytes.Buffer
	if err := WriteManifest(&buf, specs); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	m, err := ParseManifest(&buf)
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if got, want := strings.Join(m.Names(), ","), strings.Join(reg.Names(), ","); got != want {
		t.Errorf("Names = %s, want %s", got, want)
	}
	if err := m.Apply(reg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	t.Parallel()

	reg := builtinRegistry(t)
	path := filepath.Join(t.TempDir(), "tools.yaml")
	writeFile(t, path, "tools:\n  - name: read\n")

	reloads := make(chan error, 4)
	w := NewWatcher(path, reg, func(err error) { reloads <- err })
	w.SetInterval(10 * time.Millisecond)
	w.Start()
	defer w.Stop()

	writeFile(t, path, "tools:\n  - name: read\n    narrative: true\n")
	// Force a distinct mtime on coarse filesystems.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-reloads:
		if err != nil {
			t.Fatalf("reload error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after change")
	}
	if !reg.Get("read").Narrative {
		t.Error("reload did not apply the manifest")
	}
}

func TestWatcher_BrokenEditKeepsDeclarations(t *testing.T) {
	t.Parallel()

	reg := builtinRegistry(t)
	path := filepath.Join(t.TempDir(), "tools.yaml")
	writeFile(t, path, "tools:\n  - name: read\n")

	var got error
	w := NewWatcher(path, reg, func(err error) { got = err })
	w.Start()
	w.Stop()

	writeFile(t, path, "tools: [\n")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	if !w.Check() {
		t.Fatal("Check did not detect the change")
	}
	if got == nil {
		t.Error("expected reload error for broken manifest")
	}
	if reg.Get("read") == nil {
		t.Error("registry lost the read tool")
	}
	if w.Check() {
		t.Error("second Check without change reported a reload")
	}
}
