// ABOUTME: Root command: global flags, config loading, and the shared runtime for subcommands
// ABOUTME: Flags bind into the viper config so files, env, and flags resolve in one place

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigduu/copilot-client-app-sub002/internal/config"
	"github.com/bigduu/copilot-client-app-sub002/internal/render"
)

// rootOptions are the flags that are not config keys.
type rootOptions struct {
	configFile string
	project    string
	verbose    bool
	watch      bool
}

// streams are the process stdio, swapped out in tests.
type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{}
	st := streams{in: in, out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:   "copilot-agent",
		Short: "Stream agent sessions, approve tool calls, and run tools locally",
		Long: `copilot-agent is a client for an agent server.

It streams a session's events to the terminal, routes tool approval
requests to you (or to the configured policy), executes tool calls that
the model proposes inline, and can invoke tools directly with slash
commands such as "/read README.md".`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configFile, "config", "", "Global config file (default: "+config.GlobalConfigFile()+")")
	f.StringVar(&opts.project, "project", ".", "Project directory holding .copilot-agent.yaml")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging and detailed event output")
	f.BoolVar(&opts.watch, "watch-tools", false, "Reload the tool manifest when it changes")

	f.String("server", "", "Agent server URL")
	f.String("model-url", "", "OpenAI-compatible endpoint for the secondary model")
	f.String("model", "", "Secondary model name")
	f.String("mode", "", "Permission mode: normal, yolo, or plan")
	f.Duration("approval-timeout", 0, "How long an approval may wait (e.g. 2m)")
	f.String("log-level", "", "Log level: debug, info, warn, error")
	f.String("tools", "", "Tool manifest (YAML) overlaying builtin declarations")
	f.String("workspace", "", "Root directory for file tools")
	f.Int("width", 0, "Truncate plain tool results to this many columns")

	cmd.AddCommand(
		newRunCmd(opts, st),
		newSendCmd(opts, st),
		newToolsCmd(opts, st),
		newInvokeCmd(opts, st),
		newStopCmd(opts, st),
		newApproveCmd(opts, st),
		newRespondCmd(opts, st),
	)
	return cmd
}

// loadConfig resolves configuration for cmd with its parsed flags.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ProjectRoot: opts.project,
		GlobalFile:  opts.configFile,
		Flags:       cmd.Flags(),
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && render.IsTerminal(f)
}

// deadline bounds one-shot control requests.
const deadline = 30 * time.Second
