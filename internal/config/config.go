// ABOUTME: Viper-backed settings: defaults, global file, project file, COPILOT_AGENT_* env, CLI flags
// ABOUTME: Later sources win; the result is validated and turned into runtime options

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bigduu/copilot-client-app-sub002/internal/approval"
	"github.com/bigduu/copilot-client-app-sub002/internal/log"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COPILOT_AGENT"

// Config holds every setting of the client.
type Config struct {
	ServerURL       string        `mapstructure:"server_url" yaml:"server_url"`
	ModelURL        string        `mapstructure:"model_url" yaml:"model_url"`
	Model           string        `mapstructure:"model" yaml:"model"`
	APIKey          string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	ApprovalTimeout time.Duration `mapstructure:"approval_timeout" yaml:"approval_timeout"`
	ToolTimeout     time.Duration `mapstructure:"tool_timeout" yaml:"tool_timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	CacheMaxEntries int           `mapstructure:"cache_max_entries" yaml:"cache_max_entries"`
	ModelRateLimit  float64       `mapstructure:"model_rate_limit" yaml:"model_rate_limit"`
	ModelBurst      int           `mapstructure:"model_burst" yaml:"model_burst"`
	PermissionMode  string        `mapstructure:"permission_mode" yaml:"permission_mode"`
	Allow           []string      `mapstructure:"allow" yaml:"allow,omitempty"`
	Ask             []string      `mapstructure:"ask" yaml:"ask,omitempty"`
	Deny            []string      `mapstructure:"deny" yaml:"deny,omitempty"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile         string        `mapstructure:"log_file" yaml:"log_file,omitempty"`
	ToolsFile       string        `mapstructure:"tools_file" yaml:"tools_file,omitempty"`
	Workspace       string        `mapstructure:"workspace" yaml:"workspace"`
	ReadChunkSize   int           `mapstructure:"read_chunk_size" yaml:"read_chunk_size"`
	MaxLineWidth    int           `mapstructure:"max_line_width" yaml:"max_line_width"`
}

var defaults = map[string]any{
	"server_url":        "http://localhost:8080",
	"model_url":         "https://api.openai.com",
	"model":             "gpt-4o-mini",
	"api_key":           "",
	"approval_timeout":  approval.DefaultTimeout,
	"tool_timeout":      30 * time.Second,
	"cache_ttl":         5 * time.Minute,
	"cache_max_entries": 100,
	"model_rate_limit":  2.0,
	"model_burst":       1,
	"permission_mode":   "normal",
	"allow":             []string{},
	"ask":               []string{},
	"deny":              []string{},
	"log_level":         "info",
	"log_file":          "",
	"tools_file":        "",
	"workspace":         ".",
	"read_chunk_size":   4096,
	"max_line_width":    0,
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"server":           "server_url",
	"model-url":        "model_url",
	"model":            "model",
	"mode":             "permission_mode",
	"approval-timeout": "approval_timeout",
	"log-level":        "log_level",
	"tools":            "tools_file",
	"workspace":        "workspace",
	"width":            "max_line_width",
}

// LoadOptions locate the config sources.
type LoadOptions struct {
	// ProjectRoot holds the project config file; defaults to ".".
	ProjectRoot string
	// GlobalFile overrides the global config path.
	GlobalFile string
	// Flags are bound when present; only flags the user changed override files.
	Flags *pflag.FlagSet
}

// Load resolves configuration with full precedence:
// CLI flags > ENV vars > project config > global config > defaults.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k := range defaults {
		if err := v.BindEnv(k, EnvPrefix+"_"+strings.ToUpper(k)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", k, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding --%s: %w", name, err)
				}
			}
		}
	}

	global := opts.GlobalFile
	if global == "" {
		global = GlobalConfigFile()
	}
	if fileExists(global) {
		v.SetConfigFile(global)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config %s: %w", global, err)
		}
		log.Debug("config: loaded %s", global)
	}

	root := opts.ProjectRoot
	if root == "" {
		root = "."
	}
	if project := ProjectConfigFile(root); fileExists(project) {
		v.SetConfigFile(project)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config %s: %w", project, err)
		}
		log.Debug("config: merged %s", project)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	resolveEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ServerURL) == "" {
		errs = append(errs, errors.New("server_url must be set"))
	}
	if c.ApprovalTimeout <= 0 {
		errs = append(errs, fmt.Errorf("approval_timeout must be positive, got %s", c.ApprovalTimeout))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL))
	}
	if c.CacheMaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("cache_max_entries must be positive, got %d", c.CacheMaxEntries))
	}
	if c.ModelRateLimit < 0 {
		errs = append(errs, fmt.Errorf("model_rate_limit must not be negative, got %g", c.ModelRateLimit))
	}
	if c.ReadChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("read_chunk_size must be positive, got %d", c.ReadChunkSize))
	}
	if _, err := approval.ParseMode(c.PermissionMode); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Policy builds the approval policy from the permission settings.
func (c *Config) Policy() *approval.Policy {
	mode, _ := approval.ParseMode(c.PermissionMode)
	return approval.NewPolicy(mode, c.Allow, c.Ask, c.Deny)
}
