// ABOUTME: Standard filesystem paths for copilot-agent configuration
// ABOUTME: Global config under $XDG_CONFIG_HOME (or ~/.config); project config in the working tree

package config

import (
	"os"
	"path/filepath"
)

const (
	appName           = "copilot-agent"
	configFileName    = "config.yaml"
	projectConfigName = ".copilot-agent.yaml"
	manifestFileName  = "tools.yaml"
)

// GlobalDir returns the user-global config directory.
func GlobalDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appName)
	}
	return filepath.Join(home, ".config", appName)
}

// GlobalConfigFile returns the path to the global config file.
func GlobalConfigFile() string {
	return filepath.Join(GlobalDir(), configFileName)
}

// ProjectConfigFile returns the path to the project-local config file.
func ProjectConfigFile(projectRoot string) string {
	return filepath.Join(projectRoot, projectConfigName)
}

// DefaultManifestFile returns the global tool manifest path.
func DefaultManifestFile() string {
	return filepath.Join(GlobalDir(), manifestFileName)
}

// EnsureDir creates a directory and all parents if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o700)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
