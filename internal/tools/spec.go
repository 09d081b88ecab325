// ABOUTME: Tool declarations: parameters, extraction strategy, prompts, and approval needs
// ABOUTME: A Spec is pure data so it can be loaded from a YAML manifest; Tool pairs it with code

package tools

import (
	"context"
	"fmt"
	"strings"
)

// Value is one named argument, in the order the tool declares it.
type Value struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Values is an ordered argument list.
type Values []Value

// Get returns the value for name.
func (vs Values) Get(name string) (string, bool) {
	for _, v := range vs {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// String renders the list as "name=value" pairs, used in logs and signatures.
func (vs Values) String() string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Name + "=" + v.Value
	}
	return strings.Join(parts, ", ")
}

// Strategy selects how arguments are derived from a raw description.
type Strategy string

const (
	StrategyDeterministic Strategy = "deterministic"
	StrategyModelAssisted Strategy = "model_assisted"
)

// RuleKind names a deterministic extraction rule.
type RuleKind string

const (
	// RuleFirstSpace splits on whitespace into exactly len(Params) parts;
	// the last parameter takes the remainder.
	RuleFirstSpace RuleKind = "first_space"
	// RuleWhole maps the trimmed description onto the single parameter.
	RuleWhole RuleKind = "whole"
	// RuleRegex matches Pattern; named groups bind to parameters.
	RuleRegex RuleKind = "regex"
	// RuleDelimiter splits on Delimiter into exactly len(Params) parts.
	RuleDelimiter RuleKind = "delimiter"
)

// Rule is a deterministic extraction rule.
type Rule struct {
	Kind      RuleKind `yaml:"kind"`
	Pattern   string   `yaml:"pattern,omitempty"`
	Delimiter string   `yaml:"delimiter,omitempty"`
}

// Param declares one tool parameter.
type Param struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Spec is the declaration of a tool.
type Spec struct {
	Name        string   `yaml:"name"`
	Label       string   `yaml:"label,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Params      []Param  `yaml:"params"`
	Strategy    Strategy `yaml:"strategy"`
	Rule        Rule     `yaml:"rule,omitempty"`
	// Prompt is the text/template sent to the secondary model for
	// model-assisted extraction. It sees .Tool, .Params and .Description.
	Prompt string `yaml:"prompt,omitempty"`
	// SummaryPrompt is appended to the base narrative prompt when results
	// are summarized by the model.
	SummaryPrompt string `yaml:"summary_prompt,omitempty"`
	// Narrative selects model-rendered results instead of the plain template.
	Narrative         bool   `yaml:"narrative,omitempty"`
	ReadOnly          bool   `yaml:"read_only,omitempty"`
	RequiresApproval  bool   `yaml:"requires_approval,omitempty"`
	DisplayPreference string `yaml:"display_preference,omitempty"`
}

// ParamNames returns the declared parameter names in order.
func (s Spec) ParamNames() []string {
	out := make([]string, len(s.Params))
	for i, p := range s.Params {
		out[i] = p.Name
	}
	return out
}

// Validate checks that the declaration is internally consistent.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("tool spec: missing name")
	}
	seen := make(map[string]bool, len(s.Params))
	for _, p := range s.Params {
		if p.Name == "" {
			return fmt.Errorf("tool %s: parameter with empty name", s.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %s: duplicate parameter %q", s.Name, p.Name)
		}
		seen[p.Name] = true
	}

	switch s.Strategy {
	case StrategyDeterministic:
		switch s.Rule.Kind {
		case RuleFirstSpace:
		case RuleWhole:
			if len(s.Params) != 1 {
				return fmt.Errorf("tool %s: rule %q needs exactly one parameter", s.Name, s.Rule.Kind)
			}
		case RuleRegex:
			if s.Rule.Pattern == "" {
				return fmt.Errorf("tool %s: regex rule without pattern", s.Name)
			}
		case RuleDelimiter:
			if s.Rule.Delimiter == "" {
				return fmt.Errorf("tool %s: delimiter rule without delimiter", s.Name)
			}
		default:
			return fmt.Errorf("tool %s: unknown rule %q", s.Name, s.Rule.Kind)
		}
	case StrategyModelAssisted:
		if s.Prompt == "" {
			return fmt.Errorf("tool %s: model-assisted strategy without prompt", s.Name)
		}
	default:
		return fmt.Errorf("tool %s: unknown strategy %q", s.Name, s.Strategy)
	}
	return nil
}

// ExecFunc runs a tool with validated arguments and returns its raw output.
// A returned error becomes a typed ExecutionError.
type ExecFunc func(ctx context.Context, args Values) (string, error)

// Tool is a declaration plus its implementation.
type Tool struct {
	Spec
	Execute ExecFunc
}
