// Package paths provides XDG-compliant path resolution for storefront.
//
// Resolution order:
// 1. STOREFRONT_HOME (portable root) → $STOREFRONT_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/storefront
// 3. Platform defaults → ~/.config/storefront, ~/.local/state/storefront
package paths

import (
	"os"
	"path/filepath"
)

const appName = "storefront"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if home := os.Getenv("STOREFRONT_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if home := os.Getenv("STOREFRONT_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the storefront configuration directory.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	if os.Getenv("STOREFRONT_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// StateDir returns the storefront state directory. Used for opt-in log files.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	if os.Getenv("STOREFRONT_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}
