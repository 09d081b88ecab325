// ABOUTME: Tests for the levelled logging package
// ABOUTME: Validates level parsing, filtering, and output redirection

package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "debug", want: "DEBUG"},
		{in: "INFO", want: "INFO"},
		{in: "", want: "INFO"},
		{in: "warning", want: "WARN"},
		{in: "error", want: "ERROR"},
		{in: "loud", want: "INFO", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got.String() != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

// The remaining tests mutate package globals and must not run in parallel.

func TestLevelFiltering(t *testing.T) {
	saved := GetLevel()
	defer SetLevel(saved)

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel(LevelWarn)
	Debug("hidden %d", 1)
	Info("hidden %d", 2)
	Warn("shown %d", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below warn leaked: %q", out)
	}
	if !strings.Contains(out, "shown 3") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestErrorAlwaysEmitted(t *testing.T) {
	saved := GetLevel()
	defer SetLevel(saved)

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel(LevelError + 4)
	Error("boom: %s", "disk")

	if !strings.Contains(buf.String(), "boom: disk") {
		t.Errorf("error message missing: %q", buf.String())
	}
}
