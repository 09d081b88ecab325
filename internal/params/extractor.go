// ABOUTME: ParameterExtractor: dispatches on the tool's declared strategy
// ABOUTME: Model-assisted extraction renders the tool prompt, asks the secondary model, and caches answers

package params

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/template"

	"github.com/bigduu/copilot-client-app-sub002/internal/cache"
	"github.com/bigduu/copilot-client-app-sub002/internal/log"
	"github.com/bigduu/copilot-client-app-sub002/internal/model"
	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

const systemPrompt = "You extract arguments for a tool call from a user's request. " +
	"Reply with the argument values only, no commentary. " +
	"When several values are requested, separate them with the given delimiter."

// fallbackDelimiters are the candidates for a multi-value reply when the tool
// declares no delimiter of its own.
var fallbackDelimiters = []string{"|", "\n", ","}

// Extractor derives tool arguments from a raw description.
type Extractor struct {
	model model.Channel
	cache *cache.Cache[string, tools.Values]
}

// New creates an Extractor. ch may be nil when no tool is model-assisted;
// c may be nil to disable caching.
func New(ch model.Channel, c *cache.Cache[string, tools.Values]) *Extractor {
	return &Extractor{model: ch, cache: c}
}

// Extract returns the arguments for spec. The strategy is always the one the
// tool declares.
func (x *Extractor) Extract(ctx context.Context, spec tools.Spec, description string) (tools.Values, error) {
	switch spec.Strategy {
	case tools.StrategyDeterministic:
		return Deterministic(spec, description)
	case tools.StrategyModelAssisted:
		if x.cache == nil {
			return x.modelAssisted(ctx, spec, description)
		}
		key := spec.Name + "\x00" + spec.Prompt + "\x00" + strings.TrimSpace(description)
		vals, err := x.cache.GetOrLoad(ctx, key, func(ctx context.Context) (tools.Values, error) {
			return x.modelAssisted(ctx, spec, description)
		})
		return slices.Clone(vals), err
	default:
		return nil, failf(spec.Name, "unknown strategy %q", spec.Strategy)
	}
}

type promptData struct {
	Tool        string
	Params      []tools.Param
	Description string
	Delimiter   string
}

func (x *Extractor) modelAssisted(ctx context.Context, spec tools.Spec, description string) (tools.Values, error) {
	if x.model == nil {
		return nil, failf(spec.Name, "no model channel configured")
	}

	delim := spec.Rule.Delimiter
	if delim == "" {
		delim = fallbackDelimiters[0]
	}
	prompt, err := renderPrompt(spec, promptData{
		Tool:        spec.Name,
		Params:      spec.Params,
		Description: strings.TrimSpace(description),
		Delimiter:   delim,
	})
	if err != nil {
		return nil, failf(spec.Name, "rendering prompt: %v", err)
	}

	msgs := []model.Message{model.System(systemPrompt), model.User(prompt)}
	log.Debug("params: asking model for %s arguments:\n%s", spec.Name, model.Transcript(msgs))

	reply, err := x.model.Complete(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: tool %s: model call: %w", ErrExtractionFailed, spec.Name, err)
	}
	return ParseReply(spec, reply)
}

func renderPrompt(spec tools.Spec, data promptData) (string, error) {
	tmpl, err := template.New(spec.Name).Option("missingkey=error").Parse(spec.Prompt)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// ParseReply turns a model reply into exactly the declared parameters. A
// single parameter takes the whole trimmed reply. Several parameters are
// split on the tool's declared delimiter only; without one, exactly one of
// the fallback delimiters must decompose the reply, otherwise the reply is
// ambiguous and extraction fails.
func ParseReply(spec tools.Spec, reply string) (tools.Values, error) {
	reply = cleanReply(reply)
	if reply == "" {
		return nil, failf(spec.Name, "model returned no value")
	}

	n := len(spec.Params)
	if n == 1 {
		return bind(spec, []string{reply})
	}

	if d := spec.Rule.Delimiter; d != "" {
		vals, err := splitReply(spec, reply, d)
		if err != nil {
			return nil, failf(spec.Name, "cannot split reply %q on %q into %d values %v", reply, d, n, spec.ParamNames())
		}
		return vals, nil
	}

	var (
		found tools.Values
		used  []string
	)
	for _, d := range fallbackDelimiters {
		if vals, err := splitReply(spec, reply, d); err == nil {
			found = vals
			used = append(used, strconv.Quote(d))
		}
	}
	switch len(used) {
	case 0:
		return nil, failf(spec.Name, "cannot split reply %q into %d values %v", reply, n, spec.ParamNames())
	case 1:
		return found, nil
	default:
		return nil, failf(spec.Name, "reply %q splits ambiguously on %s", reply, strings.Join(used, " and "))
	}
}

func splitReply(spec tools.Spec, reply, delim string) (tools.Values, error) {
	return bind(spec, strings.Split(reply, delim))
}

// cleanReply trims whitespace, a surrounding code fence, and matching quotes.
func cleanReply(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) >= 6 {
		inner := s[3 : len(s)-3]
		// The opening fence line is empty or holds a language tag.
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], " |,") {
			inner = inner[nl+1:]
		}
		s = strings.TrimSpace(inner)
	}
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}
