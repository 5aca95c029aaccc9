package keytrack

import (
	"maps"
	"slices"
	"time"
)

// Snapshot is a copy of a Tracker's state. Changing it does not affect the
// Tracker.
type Snapshot struct {
	Pressed        []string             `json:"pressed"`
	PressTimes     map[string]time.Time `json:"press_times"`
	SentHotkeys    []string             `json:"sent_hotkeys"`
	LastKeyTime    time.Time            `json:"last_key_time"`
	LastHotkeyTime time.Time            `json:"last_hotkey_time"`
	TypingMode     bool                 `json:"typing_mode"`
	Typed          string               `json:"typed"`
}

// Snapshot copies the current state. Key names are sorted.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Pressed:        t.Pressed(),
		PressTimes:     maps.Clone(t.pressTimes),
		SentHotkeys:    slices.Sorted(maps.Keys(t.sent)),
		LastKeyTime:    t.lastKeyTime,
		LastHotkeyTime: t.lastHotkeyTime,
		TypingMode:     t.typingMode,
		Typed:          string(t.typed),
	}
}
