// ABOUTME: Command-form tool call recognizer: "/name description" utterances
// ABOUTME: Input is NFC-normalized and Unicode spaces are folded before matching

package toolcall

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

// Prefix marks an utterance as a tool command.
const Prefix = '/'

// Command is a recognized command utterance before tool resolution.
type Command struct {
	Name        string
	Description string
}

// ParseCommand recognizes "/name rest". The name runs up to the first
// whitespace; the trimmed rest is the description. Input without the prefix,
// or with an empty name, is not a command; that is not an error.
func ParseCommand(input string) (Command, bool) {
	s := normalize(input)
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if s == "" || rune(s[0]) != Prefix {
		return Command{}, false
	}
	s = s[1:]

	name, rest, _ := strings.Cut(s, " ")
	if i := strings.IndexFunc(name, unicode.IsSpace); i >= 0 {
		name, rest = name[:i], name[i:]+" "+rest
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: name, Description: strings.TrimSpace(rest)}, true
}

// Request is an immutable tool call request resolved against a registry.
type Request struct {
	ToolName       string
	RawDescription string
	Strategy       tools.Strategy
}

// Parser resolves commands to requests. The strategy always comes from the
// tool declaration, never from the caller.
type Parser struct {
	registry *tools.Registry
}

// NewParser creates a Parser backed by r.
func NewParser(r *tools.Registry) *Parser {
	return &Parser{registry: r}
}

// Parse recognizes and resolves input. ok is false when input is not a
// command. A command naming an unregistered tool returns a
// *tools.UnknownToolError with suggestions.
func (p *Parser) Parse(input string) (req Request, ok bool, err error) {
	cmd, ok := ParseCommand(input)
	if !ok {
		return Request{}, false, nil
	}
	tool := p.registry.Get(cmd.Name)
	if tool == nil {
		return Request{}, true, &tools.UnknownToolError{Name: cmd.Name, Suggestions: p.registry.Suggest(cmd.Name)}
	}
	return Request{
		ToolName:       tool.Name,
		RawDescription: cmd.Description,
		Strategy:       tool.Strategy,
	}, true, nil
}

// normalize applies NFC and folds non-ASCII spaces to U+0020.
func normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.Map(func(r rune) rune {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' && unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}
