package script

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Encode writes steps in the given format. FormatAuto writes a JSON array.
func Encode(w io.Writer, steps []Step, format Format) error {
	switch format {
	case FormatAuto, FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if steps == nil {
			steps = []Step{}
		}
		if err := enc.Encode(steps); err != nil {
			return fmt.Errorf("encode JSON script: %w", err)
		}
	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, s := range steps {
			if err := enc.Encode(s); err != nil {
				return fmt.Errorf("encode JSON lines script: %w", err)
			}
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(steps); err != nil {
			return fmt.Errorf("encode YAML script: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode YAML script: %w", err)
		}
	default:
		return fmt.Errorf("unknown script format %q", format)
	}
	return nil
}
