package keytrack

import (
	"maps"
	"slices"
	"time"
)

// Clock returns the current time. The default is time.Now, whose values
// carry a monotonic reading.
type Clock func() time.Time

// Tracker holds the key state of one listening session.
type Tracker struct {
	clock Clock

	pressed    map[string]struct{}
	pressTimes map[string]time.Time
	sent       map[string]struct{}

	lastKeyTime    time.Time
	lastHotkeyTime time.Time
	typingMode     bool

	typed []rune
}

// New creates a Tracker that timestamps events with time.Now.
func New() *Tracker {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Tracker that timestamps events with clock.
func NewWithClock(clock Clock) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		clock:      clock,
		pressed:    make(map[string]struct{}),
		pressTimes: make(map[string]time.Time),
		sent:       make(map[string]struct{}),
	}
}

// Press records a key-down. Repeated key-downs for a key that is already
// held keep the original press time.
func (t *Tracker) Press(k Key) {
	if _, held := t.pressed[k.Name]; held {
		return
	}
	now := t.clock()
	t.pressed[k.Name] = struct{}{}
	t.pressTimes[k.Name] = now
	t.lastKeyTime = now
}

// Release records a key-up. Releasing a key that is not held is a no-op.
func (t *Tracker) Release(k Key) {
	delete(t.pressed, k.Name)
	delete(t.pressTimes, k.Name)
}

// IsPressed reports whether the named key is held.
func (t *Tracker) IsPressed(name string) bool {
	_, ok := t.pressed[name]
	return ok
}

// Pressed returns the names of the keys held, sorted.
func (t *Tracker) Pressed() []string {
	return slices.Sorted(maps.Keys(t.pressed))
}

// PressedCount returns the number of keys held.
func (t *Tracker) PressedCount() int {
	return len(t.pressed)
}

// PressTime returns when the named key was pressed.
func (t *Tracker) PressTime(name string) (time.Time, bool) {
	ts, ok := t.pressTimes[name]
	return ts, ok
}

// IsHotkey reports whether the keys currently held form a hotkey.
//
// A single enter or other control key is a hotkey; a single backspace or
// modifier is not. Anything else goes to the general rule: a modifier held
// together with a non-modifier, or two or more keys without any modifier.
func (t *Tracker) IsHotkey() bool {
	if len(t.pressed) == 0 {
		return false
	}
	if len(t.pressed) == 1 {
		var only string
		for name := range t.pressed {
			only = name
		}
		switch {
		case only == "enter":
			return true
		case only == "backspace":
			return false
		case IsModifier(only):
			return false
		case IsControl(only):
			return true
		}
	}

	hasModifier, hasOther := t.chordKinds()
	if hasModifier && hasOther {
		return true
	}
	return len(t.pressed) > 1 && !hasModifier
}

// ShouldSendHotkey reports whether a hotkey signal should fire for the key
// that was just pressed. Enter always fires. A lone key fires unless it is
// a modifier. While a modifier and a non-modifier are both held every key
// fires, so each additional key of an active chord is signalled.
func (t *Tracker) ShouldSendHotkey(k Key) bool {
	token := DispatchToken(k)
	if token == "enter" {
		return true
	}
	if len(t.pressed) == 1 {
		return !isModifierToken(token) && !IsModifier(k.Name)
	}
	hasModifier, hasOther := t.chordKinds()
	return hasModifier && hasOther
}

func (t *Tracker) chordKinds() (hasModifier, hasOther bool) {
	for name := range t.pressed {
		if IsModifier(name) {
			hasModifier = true
		} else {
			hasOther = true
		}
	}
	return hasModifier, hasOther
}

// DispatchToken resolves a key to the string used to identify it in hotkey
// decisions. A printable character resolves to itself, a Ctrl+letter
// control byte to its letter, any other control byte to itself. Keys
// without a character resolve to their canonical name.
func DispatchToken(k Key) string {
	if !k.HasChar() {
		return Canonicalize(k.Name)
	}
	if k.Char >= 32 {
		return string(k.Char)
	}
	if l, ok := ctrlMap[k.Char]; ok {
		return string(l)
	}
	return string(k.Char)
}

// HotkeySent reports whether token was already dispatched for the current
// chord.
func (t *Tracker) HotkeySent(token string) bool {
	_, ok := t.sent[token]
	return ok
}

// MarkHotkeySent records token as dispatched for the current chord.
func (t *Tracker) MarkHotkeySent(token string) {
	t.sent[token] = struct{}{}
}

// ClearSentHotkeys forgets every dispatched token.
func (t *Tracker) ClearSentHotkeys() {
	clear(t.sent)
}

// RecordHotkey stores the time a hotkey was dispatched.
func (t *Tracker) RecordHotkey(at time.Time) {
	t.lastHotkeyTime = at
}

// LastKeyTime returns the time of the most recent new key press.
func (t *Tracker) LastKeyTime() time.Time {
	return t.lastKeyTime
}

// LastHotkeyTime returns the time of the most recent hotkey dispatch.
func (t *Tracker) LastHotkeyTime() time.Time {
	return t.lastHotkeyTime
}

// TypingMode reports whether text accumulation is active.
func (t *Tracker) TypingMode() bool {
	return t.typingMode
}

// SetTypingMode switches text accumulation on or off.
func (t *Tracker) SetTypingMode(on bool) {
	t.typingMode = on
}

// Reset clears the held keys, press times, dispatched tokens, typed text
// and typing mode. Timestamps are kept.
func (t *Tracker) Reset() {
	clear(t.pressed)
	clear(t.pressTimes)
	clear(t.sent)
	t.typed = t.typed[:0]
	t.typingMode = false
}
