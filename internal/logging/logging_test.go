package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestLevelString(t *testing.T) {
	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(l))
		if err != nil || parsed != l {
			t.Errorf("round trip of %v failed: %v, %v", l, parsed, err)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if !cfg.RedactText {
		t.Error("typed text should be redacted by default")
	}
	if !strings.Contains(cfg.FilePath, "keytrack") {
		t.Errorf("log path should mention keytrack: %s", cfg.FilePath)
	}
}

func TestJSONOutputWithComponentAndSession(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, &Config{Level: LevelDebug, Format: FormatJSON, Component: "keytrack"})

	logger.WithComponent("listener").WithSession("abc").Info("hotkey", "combination", "ctrl+c")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}
	if entry["component"] != "listener" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["session_id"] != "abc" {
		t.Errorf("session_id = %v", entry["session_id"])
	}
	if entry["combination"] != "ctrl+c" {
		t.Errorf("combination = %v", entry["combination"])
	}
}

func TestRedactText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, &Config{Level: LevelInfo, RedactText: true})
	logger.Info("typing", "text", "hunter2")

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("typed text leaked: %s", out)
	}
	if !strings.Contains(out, "REDACTED 7 chars") {
		t.Errorf("expected redaction marker: %s", out)
	}

	buf.Reset()
	logger = NewWithWriter(&buf, &Config{Level: LevelInfo})
	logger.Info("typing", "text", "hunter2")
	if !strings.Contains(buf.String(), "hunter2") {
		t.Errorf("text should be logged when redaction is off: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, &Config{Level: LevelWarn})
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn should pass at warn level")
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "keytrack.log")
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = path

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("written to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestRotatorRotatesAndPrunes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keytrack.log")
	cfg := &Config{FilePath: path, MaxSize: 1, MaxBackups: 2, Compress: true}

	r, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("NewFileRotator: %v", err)
	}
	defer r.Close()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	chunk := bytes.Repeat([]byte("x"), 700*1024)
	for i := 0; i < 5; i++ {
		if _, err := r.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	backups := r.Backups()
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups after pruning, got %v", backups)
	}
	for _, b := range backups {
		if !strings.HasSuffix(b, ".gz") {
			t.Errorf("backup %s should be compressed", b)
		}
	}
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, &Config{Level: LevelInfo})

	ok := logger.Recover("callback", func() { panic("boom") })
	if ok {
		t.Error("Recover should report the panic")
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("panic value not logged: %s", buf.String())
	}

	if !logger.Recover("callback", func() {}) {
		t.Error("Recover should report a normal return")
	}
}
