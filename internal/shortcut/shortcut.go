// Package shortcut maps user-written hotkey strings to actions.
//
// Shortcuts are normalized with the same rules keytrack uses to format a
// held chord, so a configured "Shift+Ctrl+T" matches the combination
// "ctrl+shift+t" produced by a Tracker.
package shortcut

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"keytrack/internal/keytrack"
)

// aliases maps accepted spellings to tracker key names.
var aliases = map[string]string{
	"ctrl":     "ctrl_l",
	"control":  "ctrl_l",
	"alt":      "alt_l",
	"option":   "alt_l",
	"shift":    "shift_l",
	"cmd":      "cmd_l",
	"command":  "cmd_l",
	"super":    "cmd_l",
	"win":      "cmd_l",
	"meta":     "cmd_l",
	"escape":   "esc",
	"return":   "enter",
	"del":      "delete",
	"ins":      "insert",
	"pgup":     "page_up",
	"pageup":   "page_up",
	"pgdn":     "page_down",
	"pagedown": "page_down",
	"bksp":     "backspace",
}

// Binding is a parsed shortcut.
// Construct only via Parse.
type Binding struct {
	combo string
	keys  []string
}

// Combo returns the canonical combination string.
func (b Binding) Combo() string { return b.combo }

// Keys returns the tracker key names that make up the binding.
func (b Binding) Keys() []string { return slices.Clone(b.keys) }

// String implements fmt.Stringer.
func (b Binding) String() string { return b.combo }

// Parse parses a shortcut such as "Ctrl+Shift+T", "alt+f4" or "ctrl+,".
func Parse(spec string) (Binding, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return Binding{}, fmt.Errorf("shortcut is empty")
	}

	var parts []string
	if strings.HasSuffix(raw, "++") {
		parts = append(strings.Split(raw[:len(raw)-2], "+"), "+")
	} else if raw == "+" {
		parts = []string{"+"}
	} else {
		parts = strings.Split(raw, "+")
	}

	seen := make(map[string]struct{}, len(parts))
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		name := normalizeKey(part)
		if name == "" {
			return Binding{}, fmt.Errorf("empty key in shortcut %q", raw)
		}
		if _, dup := seen[name]; dup {
			return Binding{}, fmt.Errorf("key %q repeated in shortcut %q", part, raw)
		}
		seen[name] = struct{}{}
		keys = append(keys, name)
	}

	return Binding{
		combo: keytrack.FormatCombination(keys...),
		keys:  keys,
	}, nil
}

func normalizeKey(part string) string {
	token := strings.TrimSpace(part)
	if token == "" {
		return ""
	}
	lower := strings.ToLower(token)
	if name, ok := aliases[lower]; ok {
		return name
	}
	return strings.ReplaceAll(lower, " ", "_")
}

// Normalize returns the canonical form of spec.
func Normalize(spec string) (string, error) {
	b, err := Parse(spec)
	if err != nil {
		return "", err
	}
	return b.combo, nil
}

// Table looks up actions by canonical combination.
type Table struct {
	byCombo  map[string]string
	byAction map[string]Binding
}

// NewTable builds a Table from action -> shortcut pairs. Two actions bound
// to the same combination are rejected.
func NewTable(bindings map[string]string) (*Table, error) {
	t := &Table{
		byCombo:  make(map[string]string, len(bindings)),
		byAction: make(map[string]Binding, len(bindings)),
	}
	for _, action := range slices.Sorted(maps.Keys(bindings)) {
		b, err := Parse(bindings[action])
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", action, err)
		}
		if other, dup := t.byCombo[b.combo]; dup {
			return nil, fmt.Errorf("action %s: %s already bound to %s", action, b.combo, other)
		}
		t.byCombo[b.combo] = action
		t.byAction[action] = b
	}
	return t, nil
}

// Lookup returns the action bound to a canonical combination.
func (t *Table) Lookup(combo string) (string, bool) {
	if t == nil {
		return "", false
	}
	action, ok := t.byCombo[combo]
	return action, ok
}

// Binding returns the binding of an action.
func (t *Table) Binding(action string) (Binding, bool) {
	if t == nil {
		return Binding{}, false
	}
	b, ok := t.byAction[action]
	return b, ok
}

// Actions returns the bound actions in sorted order.
func (t *Table) Actions() []string {
	if t == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(t.byAction))
}

// Len returns the number of bindings.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byAction)
}
