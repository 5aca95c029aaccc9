// Package config handles configuration loading, validation, and management for keytrack.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Listener tunes how key events become hotkey and typing notifications.
	Listener ListenerConfig `toml:"listener" json:"listener" yaml:"listener"`

	// Shortcuts maps action names to hotkey strings such as "ctrl+r".
	Shortcuts map[string]string `toml:"shortcuts" json:"shortcuts" yaml:"shortcuts"`

	// Journal configuration for recording notifications.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// Relay configuration for the websocket broadcaster.
	Relay RelayConfig `toml:"relay" json:"relay" yaml:"relay"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// ListenerConfig holds the hotkey/typing policy settings.
type ListenerConfig struct {
	// HotkeyTimeoutMs is the window after a hotkey in which further keys
	// still count as part of it.
	HotkeyTimeoutMs int `toml:"hotkey_timeout_ms" json:"hotkey_timeout_ms" yaml:"hotkey_timeout_ms"`

	// TypingTimeoutMs is the idle time after which typed text is flushed
	// on the next key release.
	TypingTimeoutMs int `toml:"typing_timeout_ms" json:"typing_timeout_ms" yaml:"typing_timeout_ms"`

	// EscHotkey fires an "esc" hotkey on every Escape press.
	EscHotkey bool `toml:"esc_hotkey" json:"esc_hotkey" yaml:"esc_hotkey"`

	// CtrlCharHotkeys turns Ctrl+letter control characters into hotkeys.
	CtrlCharHotkeys bool `toml:"ctrl_char_hotkeys" json:"ctrl_char_hotkeys" yaml:"ctrl_char_hotkeys"`

	// BufferSize is the capacity of each subscriber channel.
	BufferSize int `toml:"buffer_size" json:"buffer_size" yaml:"buffer_size"`
}

// JournalConfig holds notification journal settings.
type JournalConfig struct {
	// Enabled turns recording on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// RelayConfig holds websocket relay settings.
type RelayConfig struct {
	// Enabled starts the relay.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Addr is the listen address, e.g. "127.0.0.1:7788".
	Addr string `toml:"addr" json:"addr" yaml:"addr"`

	// Path is the HTTP path of the websocket endpoint.
	Path string `toml:"path" json:"path" yaml:"path"`

	// MetricsPath serves Prometheus metrics next to the relay. Empty
	// disables it.
	MetricsPath string `toml:"metrics_path" json:"metrics_path" yaml:"metrics_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stderr", "stdout", "file", "both" or "discard".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int64 `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// RedactText hides typed text in log entries.
	RedactText bool `toml:"redact_text" json:"redact_text" yaml:"redact_text"`
}

// DefaultShortcuts returns the built-in action bindings.
func DefaultShortcuts() map[string]string {
	return map[string]string{
		"record":   "ctrl+r",
		"play":     "ctrl+p",
		"settings": "ctrl+,",
		"back":     "esc",
	}
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Listener: ListenerConfig{
			HotkeyTimeoutMs: 100,
			TypingTimeoutMs: 500,
			EscHotkey:       true,
			CtrlCharHotkeys: true,
			BufferSize:      64,
		},
		Shortcuts: DefaultShortcuts(),
		Journal: JournalConfig{
			Enabled: false,
			Path:    filepath.Join(dir, "journal.db"),
		},
		Relay: RelayConfig{
			Enabled:     false,
			Addr:        "127.0.0.1:7788",
			Path:        "/events",
			MetricsPath: "/metrics",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "keytrack.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			RedactText: true,
		},
	}
}

// HotkeyTimeout returns the hotkey timeout as a duration.
func (c *Config) HotkeyTimeout() time.Duration {
	return time.Duration(c.Listener.HotkeyTimeoutMs) * time.Millisecond
}

// TypingTimeout returns the typing timeout as a duration.
func (c *Config) TypingTimeout() time.Duration {
	return time.Duration(c.Listener.TypingTimeoutMs) * time.Millisecond
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// SaveConfig writes cfg as TOML, creating the parent directory.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode TOML: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with KEYTRACK_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("KEYTRACK_TYPING_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Listener.TypingTimeoutMs = ms
		}
	}
	if v := os.Getenv("KEYTRACK_HOTKEY_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Listener.HotkeyTimeoutMs = ms
		}
	}
	if v := os.Getenv("KEYTRACK_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
		c.Journal.Enabled = true
	}
	if v := os.Getenv("KEYTRACK_RELAY_ADDR"); v != "" {
		c.Relay.Addr = v
		c.Relay.Enabled = true
	}
	if v := os.Getenv("KEYTRACK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KEYTRACK_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Version:   c.Version,
		Listener:  c.Listener,
		Shortcuts: maps.Clone(c.Shortcuts),
		Journal:   c.Journal,
		Relay:     c.Relay,
		Logging:   c.Logging,
	}
}
