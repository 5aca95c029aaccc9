package keytrack

import (
	"slices"
	"strings"
)

// Combination formats the keys currently held as a hotkey string. It
// returns "" when nothing is held.
func (t *Tracker) Combination() string {
	names := make([]string, 0, len(t.pressed))
	for name := range t.pressed {
		names = append(names, name)
	}
	return FormatCombination(names...)
}

// FormatCombination formats a set of key names the way Tracker.Combination
// does: ctrl, alt, shift and cmd first and in that order, then other
// modifiers, then the remaining keys sorted, all joined with "+".
// Left and right modifier variants collapse into one token.
func FormatCombination(names ...string) string {
	if len(names) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(names))
	var mods, others, regular []string
	for _, name := range names {
		if !IsModifier(name) {
			if _, dup := seen[name]; !dup {
				regular = append(regular, name)
			}
			seen[name] = struct{}{}
			continue
		}
		token := Canonicalize(name)
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		if slices.Contains(modifierOrder, token) {
			mods = append(mods, token)
		} else {
			others = append(others, token)
		}
	}

	parts := make([]string, 0, len(names))
	for _, m := range modifierOrder {
		if slices.Contains(mods, m) {
			parts = append(parts, m)
		}
	}
	// Map iteration order is random; sort so equal chords format equally.
	slices.Sort(others)
	slices.Sort(regular)
	parts = append(parts, others...)
	parts = append(parts, regular...)
	return strings.Join(parts, "+")
}

// ChordTokens returns the canonical token of every key currently held, in
// the order Combination lists them.
func (t *Tracker) ChordTokens() []string {
	combo := t.Combination()
	if combo == "" {
		return nil
	}
	return strings.Split(combo, "+")
}
