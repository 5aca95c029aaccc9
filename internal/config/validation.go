package config

import (
	"fmt"
	"net"
	"strings"

	"keytrack/internal/logging"
	"keytrack/internal/shortcut"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateListener(&c.Listener)...)
	errs = append(errs, validateShortcuts(c.Shortcuts)...)
	errs = append(errs, validateJournal(&c.Journal)...)
	errs = append(errs, validateRelay(&c.Relay)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateListener(l *ListenerConfig) ValidationErrors {
	var errs ValidationErrors

	if l.HotkeyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "listener.hotkey_timeout_ms",
			Message: "must not be negative",
		})
	}
	if l.TypingTimeoutMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "listener.typing_timeout_ms",
			Message: "must be positive",
		})
	}
	if l.BufferSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "listener.buffer_size",
			Message: "must be at least 1",
		})
	}
	return errs
}

func validateShortcuts(bindings map[string]string) ValidationErrors {
	if _, err := shortcut.NewTable(bindings); err != nil {
		return ValidationErrors{{Field: "shortcuts", Message: err.Error()}}
	}
	return nil
}

func validateJournal(j *JournalConfig) ValidationErrors {
	if j.Enabled && strings.TrimSpace(j.Path) == "" {
		return ValidationErrors{{Field: "journal.path", Message: "path is required when the journal is enabled"}}
	}
	return nil
}

func validateRelay(r *RelayConfig) ValidationErrors {
	if !r.Enabled {
		return nil
	}
	var errs ValidationErrors
	if _, _, err := net.SplitHostPort(r.Addr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "relay.addr",
			Message: fmt.Sprintf("invalid address %q: %v", r.Addr, err),
		})
	}
	if !strings.HasPrefix(r.Path, "/") {
		errs = append(errs, ValidationError{
			Field:   "relay.path",
			Message: "must start with /",
		})
	}
	if r.MetricsPath != "" {
		if !strings.HasPrefix(r.MetricsPath, "/") {
			errs = append(errs, ValidationError{
				Field:   "relay.metrics_path",
				Message: "must start with /",
			})
		} else if r.MetricsPath == r.Path {
			errs = append(errs, ValidationError{
				Field:   "relay.metrics_path",
				Message: "must differ from relay.path",
			})
		}
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := logging.ParseLevel(l.Level); err != nil {
		errs = append(errs, ValidationError{Field: "logging.level", Message: err.Error()})
	}
	if _, err := logging.ParseFormat(l.Format); err != nil {
		errs = append(errs, ValidationError{Field: "logging.format", Message: err.Error()})
	}
	switch strings.ToLower(l.Output) {
	case "stderr", "stdout", "discard":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required for file output",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", l.Output),
		})
	}
	return errs
}

// LoggingConfig converts the logging section for logging.New.
func (c *Config) LoggingConfig() *logging.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Logging.Level); err == nil {
		cfg.Level = level
	}
	if format, err := logging.ParseFormat(c.Logging.Format); err == nil {
		cfg.Format = format
	}
	cfg.Output = c.Logging.Output
	cfg.FilePath = c.Logging.FilePath
	cfg.MaxSize = c.Logging.MaxSizeMB
	cfg.MaxBackups = c.Logging.MaxBackups
	cfg.RedactText = c.Logging.RedactText
	return cfg
}
