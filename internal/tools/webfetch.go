// ABOUTME: WebFetch tool: fetches a URL and extracts readable content as markdown
// ABOUTME: Pages are cached by normalized URL; concurrent fetches of one URL share a single request

package tools

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"strings"

	"github.com/bigduu/copilot-client-app-sub002/internal/cache"
)

const maxFetchBody = 5 * 1024 * 1024

func newWebFetchTool(client *http.Client, pages *cache.Cache[string, string], userAgent string) *Tool {
	return &Tool{
		Spec: Spec{
			Name:              "webfetch",
			Label:             "Fetch Web Page",
			Description:       "Fetch a URL and extract its readable content as markdown.",
			Params:            []Param{{Name: "url", Description: "URL to fetch"}},
			Strategy:          StrategyDeterministic,
			Rule:              Rule{Kind: RuleWhole},
			SummaryPrompt:     "Summarize the page in a few sentences, keeping links that matter.",
			Narrative:         true,
			ReadOnly:          true,
			DisplayPreference: "markdown",
		},
		Execute: func(ctx context.Context, args Values) (string, error) {
			url, err := requireArg(args, "url")
			if err != nil {
				return "", err
			}
			target, err := normalizeURL(url)
			if err != nil {
				return "", err
			}
			return pages.GetOrLoad(ctx, target, func(ctx context.Context) (string, error) {
				return fetchPage(ctx, client, target, userAgent)
			})
		},
	}
}

// normalizeURL requires an http(s) URL and upgrades plain http for remote
// hosts. Loopback hosts keep http.
func normalizeURL(raw string) (string, error) {
	u, err := neturl.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(u.Hostname()) {
			u.Scheme = "https"
		}
	default:
		return "", fmt.Errorf("unsupported url %q: want http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", raw)
	}
	return u.String(), nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func fetchPage(ctx context.Context, client *http.Client, url, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return "", fmt.Errorf("unsupported content type %q from %s", ct, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return truncateOutput(htmlToMarkdown(string(body)), maxOutput), nil
}
