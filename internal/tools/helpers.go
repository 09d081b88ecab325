// ABOUTME: Shared helpers for builtin tools: argument accessors and output shaping
// ABOUTME: Kept tiny so every builtin reads the same way

package tools

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxOutput = 100 * 1024 // 100KB

// requireArg returns the named argument, which must be non-blank.
func requireArg(args Values, key string) (string, error) {
	v, ok := args.Get(key)
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("argument %q must not be empty", key)
	}
	return v, nil
}

// truncateOutput limits output to maxBytes on a rune boundary, appending a notice.
func truncateOutput(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... [output truncated]"
}

// skipDirs contains directory names to skip during recursive file walks.
var skipDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"dist":         true,
	"build":        true,
}
