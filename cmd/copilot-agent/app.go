// ABOUTME: Runtime wiring: logging, caches, model channel, tool registry, pipeline, and control client
// ABOUTME: Every subcommand builds one app from the resolved config and closes it on exit

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
	"github.com/bigduu/copilot-client-app-sub002/internal/cache"
	"github.com/bigduu/copilot-client-app-sub002/internal/client"
	"github.com/bigduu/copilot-client-app-sub002/internal/config"
	xhttp "github.com/bigduu/copilot-client-app-sub002/internal/http"
	"github.com/bigduu/copilot-client-app-sub002/internal/log"
	"github.com/bigduu/copilot-client-app-sub002/internal/model"
	"github.com/bigduu/copilot-client-app-sub002/internal/orchestrator"
	"github.com/bigduu/copilot-client-app-sub002/internal/params"
	"github.com/bigduu/copilot-client-app-sub002/internal/render"
	"github.com/bigduu/copilot-client-app-sub002/internal/synth"
	"github.com/bigduu/copilot-client-app-sub002/internal/toolflow"
	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

// app holds the runtime shared by the subcommands.
type app struct {
	cfg      *config.Config
	io       streams
	verbose  bool
	policy   *approval.Policy
	registry *tools.Registry
	flow     *toolflow.Flow
	control  *client.Client

	watcher *config.Watcher
	logFile *os.File
}

func newApp(cmd *cobra.Command, opts *rootOptions, st streams) (*app, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, io: st, verbose: opts.verbose, policy: cfg.Policy()}

	if err := a.setupLogging(); err != nil {
		return nil, err
	}

	pages := cache.New[string, string](cache.Options{TTL: cfg.CacheTTL, MaxEntries: cfg.CacheMaxEntries})
	a.registry = tools.NewRegistry()
	if err := tools.RegisterBuiltins(a.registry, tools.BuiltinConfig{
		Root:       cfg.Workspace,
		HTTPClient: xhttp.SecureHTTPClient(cfg.ToolTimeout),
		Pages:      pages,
	}); err != nil {
		a.close()
		return nil, fmt.Errorf("registering builtin tools: %w", err)
	}
	if err := a.applyManifest(opts.watch); err != nil {
		a.close()
		return nil, err
	}

	ch := model.New(model.Config{
		BaseURL:   cfg.ModelURL,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		RateLimit: cfg.ModelRateLimit,
		Burst:     cfg.ModelBurst,
	})
	extracted := cache.New[string, tools.Values](cache.Options{TTL: cfg.CacheTTL, MaxEntries: cfg.CacheMaxEntries})

	a.flow = toolflow.New(toolflow.Deps{
		Executor:    tools.NewExecutor(a.registry, cfg.ToolTimeout),
		Extractor:   params.New(ch, extracted),
		Policy:      a.policy,
		Synthesizer: synth.New(ch, synth.Options{MaxLineWidth: cfg.MaxLineWidth}),
	})
	a.control = client.New(cfg.ServerURL, nil)

	log.Debug("copilot-agent: server %s, model %s at %s, mode %s", cfg.ServerURL, cfg.Model, cfg.ModelURL, a.policy.Mode())
	return a, nil
}

func (a *app) setupLogging() error {
	level, err := log.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if a.cfg.LogFile == "" {
		return nil
	}
	if err := config.EnsureDir(filepath.Dir(a.cfg.LogFile)); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(a.cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	a.logFile = f
	log.SetOutput(f)
	return nil
}

// applyManifest overlays the configured tool manifest, or the global one
// when it exists.
func (a *app) applyManifest(watch bool) error {
	path := a.cfg.ToolsFile
	if path == "" {
		path = config.DefaultManifestFile()
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	m, err := config.LoadManifest(path)
	if err != nil {
		return err
	}
	if err := m.Apply(a.registry); err != nil {
		return fmt.Errorf("applying %s: %w", path, err)
	}
	if watch {
		a.watcher = config.NewWatcher(path, a.registry, nil)
		a.watcher.Start()
	}
	return nil
}

func (a *app) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(
		orchestrator.Deps{Control: a.control, Flow: a.flow, Policy: a.policy},
		orchestrator.Options{ApprovalTimeout: a.cfg.ApprovalTimeout, ChunkSize: a.cfg.ReadChunkSize},
	)
}

func (a *app) printer(opts render.Options) *render.Printer {
	opts.Verbose = a.verbose
	if f, ok := a.io.out.(*os.File); ok && render.IsTerminal(f) {
		opts.Color = true
		opts.Width = render.Width(f)
	}
	return render.NewPrinter(a.io.out, opts)
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.logFile != nil {
		log.SetOutput(os.Stderr)
		_ = a.logFile.Close()
	}
}
