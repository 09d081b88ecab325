// ABOUTME: Deterministic argument extraction: first_space, whole, regex, and delimiter rules
// ABOUTME: Pure functions of (declaration, description); any mismatch is ErrExtractionFailed

package params

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

// ErrExtractionFailed is the sentinel wrapped by every extraction failure.
var ErrExtractionFailed = errors.New("parameter extraction failed")

func failf(tool, format string, args ...any) error {
	return fmt.Errorf("%w: tool %s: %s", ErrExtractionFailed, tool, fmt.Sprintf(format, args...))
}

// Deterministic applies the declaration's rule to description and returns
// exactly the declared parameters, in order.
func Deterministic(spec tools.Spec, description string) (tools.Values, error) {
	desc := strings.TrimSpace(description)

	var parts []string
	switch spec.Rule.Kind {
	case tools.RuleWhole:
		parts = []string{desc}
	case tools.RuleFirstSpace:
		parts = splitFields(desc, len(spec.Params))
	case tools.RuleDelimiter:
		if desc != "" {
			parts = strings.Split(desc, spec.Rule.Delimiter)
		}
	case tools.RuleRegex:
		return byRegex(spec, desc)
	default:
		return nil, failf(spec.Name, "unknown rule %q", spec.Rule.Kind)
	}

	return bind(spec, parts)
}

// splitFields cuts s at whitespace into at most n parts; the last part keeps
// the remainder, inner spacing included.
func splitFields(s string, n int) []string {
	if s == "" || n <= 0 {
		return nil
	}
	var parts []string
	rest := s
	for len(parts) < n-1 {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" {
			break
		}
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			parts = append(parts, rest)
			rest = ""
			break
		}
		parts = append(parts, rest[:i])
		rest = rest[i:]
	}
	if last := strings.TrimSpace(rest); last != "" {
		parts = append(parts, last)
	}
	return parts
}

// bind pairs parts with declared parameters, requiring an exact, non-empty match.
func bind(spec tools.Spec, parts []string) (tools.Values, error) {
	if len(parts) != len(spec.Params) {
		return nil, failf(spec.Name, "expected %d value(s) for %v, found %d", len(spec.Params), spec.ParamNames(), len(parts))
	}
	out := make(tools.Values, len(parts))
	for i, p := range spec.Params {
		v := strings.TrimSpace(parts[i])
		if v == "" {
			return nil, failf(spec.Name, "empty value for %q", p.Name)
		}
		out[i] = tools.Value{Name: p.Name, Value: v}
	}
	return out, nil
}

func byRegex(spec tools.Spec, desc string) (tools.Values, error) {
	re, err := regexp.Compile(spec.Rule.Pattern)
	if err != nil {
		return nil, failf(spec.Name, "bad pattern: %v", err)
	}
	m := re.FindStringSubmatch(desc)
	if m == nil {
		return nil, failf(spec.Name, "description does not match %q", spec.Rule.Pattern)
	}

	groups := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if name != "" {
			groups[name] = m[i]
		}
	}

	parts := make([]string, len(spec.Params))
	for i, p := range spec.Params {
		v, ok := groups[p.Name]
		if !ok {
			return nil, failf(spec.Name, "pattern has no group named %q", p.Name)
		}
		parts[i] = v
	}
	return bind(spec, parts)
}
