// ABOUTME: Approval policy: normal, yolo, and plan modes plus allow/ask/deny glob rules
// ABOUTME: Decides whether a tool call runs, needs the approval gate, or is refused outright

package approval

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

// Mode determines the policy behavior.
type Mode int

const (
	ModeNormal Mode = iota // Gate tools that mutate or declare they need approval
	ModeYolo               // Never gate
	ModePlan               // Read-only: refuse everything else
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeYolo:
		return "yolo"
	case ModePlan:
		return "plan"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return ModeNormal, nil
	case "yolo":
		return ModeYolo, nil
	case "plan":
		return ModePlan, nil
	default:
		return ModeNormal, fmt.Errorf("unknown permission mode %q (want normal, yolo, or plan)", s)
	}
}

// Verdict is the policy decision for one call.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictAsk
	VerdictDeny
)

func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictAsk:
		return "ask"
	case VerdictDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// Rule is a glob rule like "write(/tmp/**)" or "webfetch(domain:go.dev)".
type Rule struct {
	Tool      string
	Specifier string
	Verdict   Verdict
}

// ParseRule parses "tool" or "tool(specifier)".
func ParseRule(s string, v Verdict) Rule {
	s = strings.TrimSpace(s)
	r := Rule{Verdict: v}
	if idx := strings.Index(s, "("); idx > 0 && strings.HasSuffix(s, ")") {
		r.Tool = s[:idx]
		r.Specifier = s[idx+1 : len(s)-1]
	} else {
		r.Tool = s
	}
	return r
}

// Policy evaluates calls against a mode and rules.
type Policy struct {
	mode  Mode
	rules []Rule
}

// NewPolicy creates a Policy from a mode and rule strings.
func NewPolicy(mode Mode, allow, ask, deny []string) *Policy {
	p := &Policy{mode: mode}
	for _, s := range deny {
		p.rules = append(p.rules, ParseRule(s, VerdictDeny))
	}
	for _, s := range ask {
		p.rules = append(p.rules, ParseRule(s, VerdictAsk))
	}
	for _, s := range allow {
		p.rules = append(p.rules, ParseRule(s, VerdictAllow))
	}
	return p
}

// Mode returns the policy mode.
func (p *Policy) Mode() Mode { return p.mode }

// Evaluate returns the verdict for calling spec with args, and a reason for denials.
func (p *Policy) Evaluate(spec tools.Spec, args tools.Values) (Verdict, string) {
	if p.mode == ModePlan && !spec.ReadOnly {
		return VerdictDeny, fmt.Sprintf("tool %q blocked in plan mode", spec.Name)
	}

	target := Specifier(args)
	// Deny first, then ask, then allow.
	for _, want := range []Verdict{VerdictDeny, VerdictAsk, VerdictAllow} {
		for _, r := range p.rules {
			if r.Verdict == want && r.matches(spec.Name, target) {
				if want == VerdictDeny {
					return VerdictDeny, fmt.Sprintf("tool %q with %q denied by rule", spec.Name, target)
				}
				return want, ""
			}
		}
	}

	if p.mode == ModeYolo {
		return VerdictAllow, ""
	}
	if spec.RequiresApproval || !spec.ReadOnly {
		return VerdictAsk, ""
	}
	return VerdictAllow, ""
}

// Specifier extracts the value rules match against: a URL host for url
// arguments, otherwise the first argument.
func Specifier(args tools.Values) string {
	if raw, ok := args.Get("url"); ok {
		if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && u.Hostname() != "" {
			return "domain:" + u.Hostname()
		}
	}
	if len(args) > 0 {
		return args[0].Value
	}
	return ""
}

func (r Rule) matches(tool, specifier string) bool {
	if !matchToolPattern(r.Tool, tool) {
		return false
	}
	if r.Specifier == "" {
		return true
	}
	if specifier == "" {
		return false
	}

	switch {
	case strings.HasSuffix(r.Specifier, "/**"):
		if strings.HasPrefix(specifier, strings.TrimSuffix(r.Specifier, "**")) {
			return true
		}
	case strings.HasSuffix(r.Specifier, "*"):
		if strings.HasPrefix(specifier, strings.TrimSuffix(r.Specifier, "*")) {
			return true
		}
	}
	if matched, _ := filepath.Match(r.Specifier, specifier); matched {
		return true
	}
	return r.Specifier == specifier
}

func matchToolPattern(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	return strings.EqualFold(pattern, name)
}
