// ABOUTME: Interactive approval prompt and terminal detection via x/term
// ABOUTME: Reads one line per proposal: y/yes approves, anything else rejects with the text as reason

package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Width returns the column count of the terminal behind f, or 80.
func Width(f *os.File) int {
	if !IsTerminal(f) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// Prompter asks the user to decide on proposals.
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	styles Styles
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, styles: NewStyles(out)}
}

// Ask prints p and reads the answer. The returned decision names p.Key.
func (pr *Prompter) Ask(p approval.Proposal) (approval.Decision, error) {
	fmt.Fprintf(pr.out, "%s %s(%s) [y/N or reason]: ",
		pr.styles.Approval.Render("Allow"), p.ToolName, p.Parameters.String())

	line, err := pr.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return approval.Decision{}, fmt.Errorf("reading approval answer: %w", err)
	}
	return ParseAnswer(p.Key, line), nil
}

// ParseAnswer turns a typed answer into a decision for key.
func ParseAnswer(key, answer string) approval.Decision {
	a := strings.TrimSpace(answer)
	switch strings.ToLower(a) {
	case "y", "yes":
		return approval.Decision{RequestID: key, Approved: true}
	case "", "n", "no":
		return approval.Decision{RequestID: key, Approved: false}
	default:
		return approval.Decision{RequestID: key, Approved: false, Reason: a}
	}
}
