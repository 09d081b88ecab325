// ABOUTME: Markdown rendering for narrative tool results via glamour
// ABOUTME: Caches output by content hash and width; falls back to raw text on renderer errors

package render

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
)

// Markdown renders markdown for the terminal.
type Markdown struct {
	color bool

	mu    sync.Mutex
	cache map[string]string
}

// NewMarkdown creates a renderer. Without color the plain "notty" style is
// used.
func NewMarkdown(color bool) *Markdown {
	return &Markdown{color: color, cache: make(map[string]string)}
}

// Render returns md styled for a terminal of the given width.
func (m *Markdown) Render(md string, width int) string {
	if md == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}

	key := cacheKey(md, width)
	m.mu.Lock()
	cached, ok := m.cache[key]
	m.mu.Unlock()
	if ok {
		return cached
	}

	style := glamour.WithStandardStyle(styles.NoTTYStyle)
	if m.color {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	out = strings.TrimRight(out, "\n ")

	m.mu.Lock()
	m.cache[key] = out
	m.mu.Unlock()
	return out
}

func cacheKey(content string, width int) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x:%d", h[:8], width)
}
