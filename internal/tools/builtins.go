// ABOUTME: Registers the builtin tool runtime: read, ls, search, write, webfetch
// ABOUTME: File tools resolve relative paths against a configurable root

package tools

import (
	"net/http"
	"time"

	"github.com/bigduu/copilot-client-app-sub002/internal/cache"
)

// BuiltinConfig configures the builtin tools. Zero values get defaults.
type BuiltinConfig struct {
	Root       string
	HTTPClient *http.Client
	Pages      *cache.Cache[string, string]
	UserAgent  string
}

// RegisterBuiltins adds every builtin tool to r.
func RegisterBuiltins(r *Registry, cfg BuiltinConfig) error {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Pages == nil {
		cfg.Pages = cache.New[string, string](cache.Options{})
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "copilot-agent/1.0"
	}

	builtins := []*Tool{
		newReadTool(cfg.Root),
		newLsTool(cfg.Root),
		newSearchTool(cfg.Root),
		newWriteTool(cfg.Root),
		newWebFetchTool(cfg.HTTPClient, cfg.Pages, cfg.UserAgent),
	}
	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
