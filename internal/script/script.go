// Package script reads recorded or hand-written key event streams.
//
// A script is a list of steps, each a key press, a key release or a pause:
//
//	[
//	  {"op": "press", "name": "ctrl_l"},
//	  {"op": "press", "char": "c"},
//	  {"op": "wait", "ms": 50},
//	  {"op": "release", "char": "c"},
//	  {"op": "release", "name": "ctrl_l"}
//	]
//
// Scripts may be written as a JSON array, as JSON lines (one step per
// line) or as a YAML list. Every step is validated against an embedded
// JSON schema before use.
package script

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"keytrack/internal/keytrack"
	"keytrack/internal/listener"
)

// ErrInvalid is wrapped by every error caused by malformed script input.
var ErrInvalid = errors.New("invalid script")

// Op is the kind of a script step.
type Op string

const (
	OpPress   Op = "press"
	OpRelease Op = "release"
	OpWait    Op = "wait"
)

// Step is one entry of a script.
type Step struct {
	Op   Op     `json:"op" yaml:"op"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Char string `json:"char,omitempty" yaml:"char,omitempty"`
	Ms   int    `json:"ms,omitempty" yaml:"ms,omitempty"`
}

// Key returns the key a press or release step refers to.
func (s Step) Key() keytrack.Key {
	var r rune
	if s.Char != "" {
		r, _ = utf8.DecodeRuneInString(s.Char)
	}
	if s.Name == "" {
		return keytrack.CharKey(r)
	}
	return keytrack.Key{Name: s.Name, Char: r}
}

// Event converts a press or release step into a listener event. Wait
// steps report false.
func (s Step) Event() (listener.Event, bool) {
	switch s.Op {
	case OpPress:
		return listener.Press(s.Key()), true
	case OpRelease:
		return listener.Release(s.Key()), true
	default:
		return listener.Event{}, false
	}
}

// Duration returns the pause of a wait step.
func (s Step) Duration() time.Duration {
	return time.Duration(s.Ms) * time.Millisecond
}

// Format identifies a script encoding.
type Format string

const (
	FormatAuto  Format = ""
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatAuto
	}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatAuto, FormatJSON, FormatJSONL, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unknown script format %q", s)
	}
}

// Decode reads a whole script.
func Decode(r io.Reader, format Format) ([]Step, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	if format == FormatAuto {
		format = detect(data)
	}

	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatJSONL:
		var steps []Step
		err := decodeLines(context.Background(), bytes.NewReader(data), func(s Step) error {
			steps = append(steps, s)
			return nil
		})
		return steps, err
	case FormatYAML:
		return decodeYAML(data)
	default:
		return nil, fmt.Errorf("unknown script format %q", format)
	}
}

// detect picks a format from the first significant byte: '[' is a JSON
// array, '{' is JSON lines, anything else is YAML.
func detect(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return FormatJSON
	}
	switch trimmed[0] {
	case '[':
		return FormatJSON
	case '{':
		return FormatJSONL
	default:
		return FormatYAML
	}
}

func decodeJSON(data []byte) ([]Step, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if err := validate(scriptSchema(), data); err != nil {
		return nil, err
	}
	var steps []Step
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return steps, nil
}

func decodeYAML(data []byte) ([]Step, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if doc == nil {
		return nil, nil
	}
	// Validate the JSON form so YAML and JSON scripts obey one schema.
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return decodeJSON(asJSON)
}

// Stream decodes JSON lines from r as they arrive and calls fn for every
// step. Blank lines and lines starting with '#' are skipped. It returns
// when r is exhausted, fn fails or ctx is done.
func Stream(ctx context.Context, r io.Reader, fn func(Step) error) error {
	return decodeLines(ctx, r, fn)
}

func decodeLines(ctx context.Context, r io.Reader, fn func(Step) error) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		if err := validate(stepSchema(), text); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		var s Step
		if err := json.Unmarshal(text, &s); err != nil {
			return fmt.Errorf("line %d: %w: %v", line, ErrInvalid, err)
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return nil
}
