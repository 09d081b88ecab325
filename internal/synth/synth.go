// ABOUTME: ResultSynthesizer: renders tool results as a fixed template or a model-streamed narrative
// ABOUTME: Narrative failures fall back to the template; template lines are width-truncated with go-runewidth

package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/bigduu/copilot-client-app-sub002/internal/log"
	"github.com/bigduu/copilot-client-app-sub002/internal/model"
	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

// ErrSynthesisFailed wraps the cause of a narrative that could not be produced.
var ErrSynthesisFailed = errors.New("synthesis failed")

const basePrompt = "You turn raw tool output into a short, accurate answer for the user. " +
	"Use only facts present in the result. Prefer markdown."

// Input is everything known about one finished (or skipped) tool call.
type Input struct {
	Tool    tools.Spec
	Request string
	Args    tools.Values
	Output  string
	// Err is set when the tool failed.
	Err error
	// Skipped is set when the call never ran, with the reason.
	Skipped string
}

// Result is a synthesized rendering.
type Result struct {
	Text      string
	Narrative bool
	// Fallback holds the narrative failure when the template was used instead.
	Fallback error
}

// Options configures a Synthesizer.
type Options struct {
	// MaxLineWidth truncates template lines to this many cells; zero disables.
	MaxLineWidth int
}

// Synthesizer renders tool results.
type Synthesizer struct {
	model model.Channel
	width int
}

// New creates a Synthesizer. ch may be nil, which disables narrative mode.
func New(ch model.Channel, opts Options) *Synthesizer {
	return &Synthesizer{model: ch, width: opts.MaxLineWidth}
}

// Template renders in synchronously without touching the network.
func (s *Synthesizer) Template(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool: %s\n", in.Tool.Name)
	b.WriteString("Parameters:\n")
	if len(in.Args) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, a := range in.Args {
		fmt.Fprintf(&b, "  %s: %s\n", a.Name, a.Value)
	}

	switch {
	case in.Skipped != "":
		fmt.Fprintf(&b, "Result:\nexecution skipped: %s", in.Skipped)
	case in.Err != nil:
		fmt.Fprintf(&b, "Error:\n%s", in.Err)
	default:
		fmt.Fprintf(&b, "Result:\n%s", strings.TrimRight(in.Output, "\n"))
	}
	return s.truncate(b.String())
}

func (s *Synthesizer) truncate(text string) string {
	if s.width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if runewidth.StringWidth(l) > s.width {
			lines[i] = runewidth.Truncate(l, s.width, "…")
		}
	}
	return strings.Join(lines, "\n")
}

// Synthesize renders in using the tool's declared mode. Narrative output is
// streamed through onToken as it arrives and accumulated into Result.Text.
// Skipped and failed calls always use the template.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input, onToken func(string)) Result {
	if !in.Tool.Narrative || in.Skipped != "" || in.Err != nil {
		return Result{Text: s.Template(in)}
	}

	text, err := s.narrate(ctx, in, onToken)
	if err != nil {
		log.Warn("synth: narrative for %s failed, using template: %v", in.Tool.Name, err)
		return Result{Text: s.Template(in), Fallback: err}
	}
	return Result{Text: text, Narrative: true}
}

func (s *Synthesizer) narrate(ctx context.Context, in Input, onToken func(string)) (string, error) {
	if s.model == nil {
		return "", fmt.Errorf("%w: no model channel configured", ErrSynthesisFailed)
	}

	system := basePrompt
	if in.Tool.SummaryPrompt != "" {
		system += "\n\n" + in.Tool.SummaryPrompt
	}
	user := fmt.Sprintf("Original request:\n%s\n\nRaw result:\n%s", strings.TrimSpace(in.Request), Raw(in))

	text, err := s.model.Stream(ctx, []model.Message{model.System(system), model.User(user)}, onToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty narrative", ErrSynthesisFailed)
	}
	return text, nil
}

// Raw is the untruncated template text, used as model input.
func Raw(in Input) string {
	return (&Synthesizer{}).Template(in)
}
