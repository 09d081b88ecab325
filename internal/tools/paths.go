// ABOUTME: Path resolution for file tools: tilde expansion, Unicode space cleanup, NFD fallback
// ABOUTME: Relative paths resolve against the tool root

package tools

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// expandPath strips a leading "@", expands "~", and maps Unicode spaces to ASCII.
func expandPath(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "@")
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\u00A0', r == '\u202F', r == '\u205F', r == '\u3000':
			return ' '
		case r >= '\u2000' && r <= '\u200A':
			return ' '
		}
		return r
	}, path)
}

// resolvePath expands path and joins it with root when relative. If the
// direct form does not exist but its NFD or straight-quote variant does,
// the variant is returned.
func resolvePath(path, root string) string {
	abs := func(p string) string {
		p = expandPath(p)
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		return filepath.Clean(p)
	}

	candidates := []string{
		abs(path),
		abs(norm.NFD.String(path)),
		abs(strings.ReplaceAll(path, "\u2019", "'")),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return candidates[0]
}
