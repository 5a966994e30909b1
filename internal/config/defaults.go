package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "cypherify"

// PlatformDataDir returns the platform-specific data directory, or
// CYPHERIFY_DATA_DIR when set.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/cypherify/
//   - Linux:   ~/.local/share/cypherify/
//   - Windows: %APPDATA%\cypherify\
func PlatformDataDir() string {
	if dir := os.Getenv("CYPHERIFY_DATA_DIR"); dir != "" {
		return dir
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", appName)
	case "linux":
		return xdgDir("XDG_DATA_HOME", ".local", "share")
	case "windows":
		return windowsDir("APPDATA", "Roaming")
	default:
		return filepath.Join(homeDir(), "."+appName)
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/cypherify/
//   - Linux:   ~/.config/cypherify/
//   - Windows: %APPDATA%\cypherify\
func PlatformConfigDir() string {
	if runtime.GOOS == "linux" && os.Getenv("CYPHERIFY_DATA_DIR") == "" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	return PlatformDataDir()
}

// PlatformLogDir returns the platform-specific log directory.
//
// Platform paths:
//   - macOS:   ~/Library/Logs/cypherify/
//   - Linux:   ~/.local/share/cypherify/logs/
//   - Windows: %LOCALAPPDATA%\cypherify\logs\
func PlatformLogDir() string {
	switch {
	case os.Getenv("CYPHERIFY_DATA_DIR") != "":
		return filepath.Join(PlatformDataDir(), "logs")
	case runtime.GOOS == "darwin":
		return filepath.Join(homeDir(), "Library", "Logs", appName)
	case runtime.GOOS == "windows":
		return filepath.Join(windowsDir("LOCALAPPDATA", "Local"), "logs")
	default:
		return filepath.Join(PlatformDataDir(), "logs")
	}
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	home, _ := os.UserHomeDir()
	return home
}

// xdgDir follows the XDG Base Directory Specification.
func xdgDir(env string, fallback ...string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	parts := append([]string{homeDir()}, fallback...)
	return filepath.Join(append(parts, appName)...)
}

func windowsDir(env, fallback string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	return filepath.Join(homeDir(), "AppData", fallback, appName)
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first found config file, or empty string if none found.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir(), PlatformDataDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
