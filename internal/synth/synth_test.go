// ABOUTME: Tests for result synthesis: template layout, truncation, narrative streaming, fallback
// ABOUTME: The model channel is faked with model.Func and a scripted streaming stub

package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bigduu/copilot-client-app-sub002/internal/model"
	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

type scriptedStream struct {
	tokens []string
	err    error
	msgs   []model.Message
}

func (s *scriptedStream) Complete(context.Context, []model.Message) (string, error) {
	return strings.Join(s.tokens, ""), s.err
}

func (s *scriptedStream) Stream(_ context.Context, msgs []model.Message, onToken func(string)) (string, error) {
	s.msgs = msgs
	var b strings.Builder
	for _, tok := range s.tokens {
		b.WriteString(tok)
		onToken(tok)
	}
	return b.String(), s.err
}

func searchInput() Input {
	return Input{
		Tool:    tools.Spec{Name: "search", SummaryPrompt: "Group by file."},
		Request: "/search needle",
		Args:    tools.Values{{Name: "query", Value: "needle"}},
		Output:  "a.go:1:needle\n",
	}
}

func TestTemplate(t *testing.T) {
	t.Parallel()

	s := New(nil, Options{})
	tests := []struct {
		name string
		mod  func(*Input)
		want string
	}{
		{"result", func(*Input) {}, "Tool: search\nParameters:\n  query: needle\nResult:\na.go:1:needle"},
		{"skipped", func(in *Input) { in.Skipped = "rejected by user" }, "Tool: search\nParameters:\n  query: needle\nResult:\nexecution skipped: rejected by user"},
		{"error", func(in *Input) { in.Err = errors.New("boom") }, "Tool: search\nParameters:\n  query: needle\nError:\nboom"},
		{"no args", func(in *Input) { in.Args = nil }, "Tool: search\nParameters:\n  (none)\nResult:\na.go:1:needle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := searchInput()
			tt.mod(&in)
			if got := s.Template(in); got != tt.want {
				t.Errorf("got\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestTemplate_TruncatesWideLines(t *testing.T) {
	t.Parallel()

	in := searchInput()
	in.Output = strings.Repeat("界", 40)
	got := New(nil, Options{MaxLineWidth: 20}).Template(in)

	last := got[strings.LastIndexByte(got, '\n')+1:]
	if !strings.HasSuffix(last, "…") {
		t.Errorf("last line %q not truncated", last)
	}
	if len([]rune(last)) > 11 {
		t.Errorf("last line %q wider than 20 cells", last)
	}
}

func TestSynthesize_NarrativeStreamsAndAccumulates(t *testing.T) {
	t.Parallel()

	stub := &scriptedStream{tokens: []string{"Found ", "one ", "match."}}
	in := searchInput()
	in.Tool.Narrative = true

	var streamed []string
	res := New(stub, Options{}).Synthesize(context.Background(), in, func(tok string) {
		streamed = append(streamed, tok)
	})

	if !res.Narrative || res.Text != "Found one match." || res.Fallback != nil {
		t.Errorf("result = %+v", res)
	}
	if len(streamed) != 3 {
		t.Errorf("streamed %d tokens, want 3", len(streamed))
	}
	if !strings.Contains(stub.msgs[0].Content, "Group by file.") {
		t.Error("system prompt missing the tool's custom prompt")
	}
	user := stub.msgs[1].Content
	if !strings.Contains(user, "/search needle") || !strings.Contains(user, "a.go:1:needle") {
		t.Errorf("user prompt missing request or raw result: %q", user)
	}
}

func TestSynthesize_FallsBackToTemplate(t *testing.T) {
	t.Parallel()

	in := searchInput()
	in.Tool.Narrative = true

	tests := []struct {
		name string
		ch   model.Channel
	}{
		{"no channel", nil},
		{"model error", &scriptedStream{tokens: []string{"par"}, err: errors.New("stream reset")}},
		{"empty narrative", model.Func(func(context.Context, []model.Message) (string, error) { return "  ", nil })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := New(tt.ch, Options{})
			res := s.Synthesize(context.Background(), in, func(string) {})
			if res.Narrative {
				t.Fatal("expected template fallback")
			}
			if !errors.Is(res.Fallback, ErrSynthesisFailed) {
				t.Errorf("Fallback = %v, want ErrSynthesisFailed", res.Fallback)
			}
			if res.Text != s.Template(in) {
				t.Errorf("text = %q", res.Text)
			}
		})
	}
}

func TestSynthesize_SkippedNeverNarrates(t *testing.T) {
	t.Parallel()

	stub := &scriptedStream{tokens: []string{"should not run"}}
	in := searchInput()
	in.Tool.Narrative = true
	in.Skipped = "timeout"

	res := New(stub, Options{}).Synthesize(context.Background(), in, func(string) {
		t.Error("no tokens expected for skipped calls")
	})
	if res.Narrative || !strings.Contains(res.Text, "execution skipped: timeout") {
		t.Errorf("result = %+v", res)
	}
}
