// ABOUTME: Environment variable expansion in config string fields
// ABOUTME: Replaces ${VAR} patterns with os.Getenv values; unset vars become empty

package config

import (
	"os"
	"regexp"
)

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// resolveEnvVars expands ${VAR} patterns in the string fields that commonly
// carry secrets or hosts.
func resolveEnvVars(c *Config) {
	c.ServerURL = expandEnv(c.ServerURL)
	c.ModelURL = expandEnv(c.ModelURL)
	c.Model = expandEnv(c.Model)
	c.APIKey = expandEnv(c.APIKey)
	c.ToolsFile = expandEnv(c.ToolsFile)
	c.Workspace = expandEnv(c.Workspace)
	c.LogFile = expandEnv(c.LogFile)
}

// expandEnv replaces ${VAR} with os.Getenv(VAR). Unset vars become "".
func expandEnv(s string) string {
	if s == "" {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
