// ABOUTME: Lipgloss palette for the terminal renderer, bound to the output writer
// ABOUTME: Non-terminal writers get a plain profile so piped output carries no escapes

package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles is the renderer palette.
type Styles struct {
	Tool     lipgloss.Style
	Approval lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Dim      lipgloss.Style
	Heading  lipgloss.Style
	Result   lipgloss.Style
}

// NewStyles builds the palette for w. Color is detected from w.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Tool:     r.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		Approval: r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		Success:  r.NewStyle().Foreground(lipgloss.Color("42")),
		Error:    r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Warning:  r.NewStyle().Foreground(lipgloss.Color("214")),
		Dim:      r.NewStyle().Faint(true),
		Heading:  r.NewStyle().Bold(true).Underline(true),
		Result: r.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			PaddingLeft(1),
	}
}
