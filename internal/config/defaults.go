package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the keytrack data directory.
// KEYTRACK_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("KEYTRACK_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/keytrack/
//   - Linux:   ~/.local/share/keytrack/
//   - Windows: %APPDATA%\keytrack\
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", "keytrack")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "keytrack")
		}
		return filepath.Join(homeDir(), "AppData", "Roaming", "keytrack")
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "keytrack")
		}
		return filepath.Join(homeDir(), ".local", "share", "keytrack")
	}
}

// PlatformConfigDir returns the platform-specific config directory.
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin", "windows":
		return PlatformDataDir()
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "keytrack")
		}
		return filepath.Join(homeDir(), ".config", "keytrack")
	}
}

// PlatformLogDir returns the platform-specific log directory.
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Logs", "keytrack")
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "keytrack", "logs")
		}
		return filepath.Join(PlatformDataDir(), "logs")
	default:
		return filepath.Join(PlatformDataDir(), "logs")
	}
}

func homeDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return home
}

// SupportedConfigFormats returns the accepted config file extensions.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches the working directory and then the config
// directory for config.<ext>. It returns "" when none exists.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
