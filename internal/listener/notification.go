package listener

import (
	"time"

	"keytrack/internal/keytrack"
)

// Kind classifies a notification.
type Kind string

const (
	// KindHotkey is a dispatched key combination.
	KindHotkey Kind = "hotkey"
	// KindTyping is a run of typed text.
	KindTyping Kind = "typing"
)

// Notification is what the listener emits to subscribers.
type Notification struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id"`
	Time      time.Time `json:"time"`

	// Hotkey fields.
	Combination string   `json:"combination,omitempty"`
	Keys        []string `json:"keys,omitempty"`
	Action      string   `json:"action,omitempty"`

	// Typing fields.
	Text string `json:"text,omitempty"`
}

// Op is a key transition.
type Op int

const (
	// OpPress is a key-down.
	OpPress Op = iota
	// OpRelease is a key-up.
	OpRelease
)

// String implements fmt.Stringer.
func (o Op) String() string {
	switch o {
	case OpPress:
		return "press"
	case OpRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Event is one raw key transition delivered by an event source.
type Event struct {
	Op  Op
	Key keytrack.Key
}

// Press returns a key-down event.
func Press(k keytrack.Key) Event { return Event{Op: OpPress, Key: k} }

// Release returns a key-up event.
func Release(k keytrack.Key) Event { return Event{Op: OpRelease, Key: k} }

// Source produces raw key events, e.g. an OS keyboard hook.
type Source interface {
	// Start begins capturing and returns the event channel. The channel is
	// closed when the source stops.
	Start() (<-chan Event, error)

	// Stop terminates capturing.
	Stop() error
}

// Stats counts what a listener has done.
type Stats struct {
	Presses  uint64 `json:"presses"`
	Releases uint64 `json:"releases"`
	Hotkeys  uint64 `json:"hotkeys"`
	Typings  uint64 `json:"typings"`
	Dropped  uint64 `json:"dropped"`
}
