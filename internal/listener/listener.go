// Package listener turns raw key events into hotkey and typing
// notifications.
//
// A Listener owns a keytrack.Tracker and applies the dispatch policy around
// it: a hotkey fires once per chord, Ctrl+letter control characters and
// Escape are hotkeys of their own, pending text is flushed before any
// hotkey so that subscribers see events in order, and text is flushed once
// typing has been idle for the typing timeout.
package listener

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"keytrack/internal/config"
	"keytrack/internal/keytrack"
	"keytrack/internal/logging"
	"keytrack/internal/shortcut"
)

// ErrStopped is returned by Run once the listener has been stopped.
var ErrStopped = errors.New("listener stopped")

// minFlushInterval bounds how often Run checks for idle text.
const minFlushInterval = time.Millisecond

// Options configures a Listener.
type Options struct {
	// TypingTimeout is the idle time after which typed text is flushed.
	TypingTimeout time.Duration

	// HotkeyTimeout is exposed to subscribers that group rapid hotkeys.
	HotkeyTimeout time.Duration

	// EscHotkey fires "esc" on Escape.
	EscHotkey bool

	// CtrlCharHotkeys turns Ctrl+letter control characters into hotkeys.
	CtrlCharHotkeys bool

	// BufferSize is the capacity of each subscriber channel.
	BufferSize int

	// Shortcuts resolves combinations to action names. May be nil.
	Shortcuts *shortcut.Table

	// Clock supplies event timestamps. Defaults to time.Now.
	Clock keytrack.Clock

	// Logger defaults to logging.Default().
	Logger *logging.Logger

	// SessionID defaults to a random UUID.
	SessionID string
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		TypingTimeout:   500 * time.Millisecond,
		HotkeyTimeout:   100 * time.Millisecond,
		EscHotkey:       true,
		CtrlCharHotkeys: true,
		BufferSize:      64,
	}
}

// OptionsFromConfig builds Options from the listener and shortcut sections.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	table, err := shortcut.NewTable(cfg.Shortcuts)
	if err != nil {
		return Options{}, err
	}
	return Options{
		TypingTimeout:   cfg.TypingTimeout(),
		HotkeyTimeout:   cfg.HotkeyTimeout(),
		EscHotkey:       cfg.Listener.EscHotkey,
		CtrlCharHotkeys: cfg.Listener.CtrlCharHotkeys,
		BufferSize:      cfg.Listener.BufferSize,
		Shortcuts:       table,
	}, nil
}

// Listener serializes key events into a Tracker and fans out the
// resulting notifications.
type Listener struct {
	mu      sync.Mutex
	opts    Options
	clock   keytrack.Clock
	tracker *keytrack.Tracker
	stats   Stats
	stopped bool

	subMu    sync.Mutex
	subs     map[Kind][]chan Notification
	handlers []func(Notification)
	closed   bool

	log       *logging.Logger
	sessionID string
}

// New creates a Listener.
func New(opts Options) *Listener {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = DefaultOptions().TypingTimeout
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Listener{
		opts:      opts,
		clock:     opts.Clock,
		tracker:   keytrack.NewWithClock(opts.Clock),
		subs:      make(map[Kind][]chan Notification),
		log:       logger.WithComponent("listener").WithSession(opts.SessionID),
		sessionID: opts.SessionID,
	}
}

// SessionID returns the ID stamped on every notification.
func (l *Listener) SessionID() string {
	return l.sessionID
}

// Subscribe returns a channel that receives notifications of the given
// kind. Notifications are dropped, not queued, when the channel is full.
// The channel is closed by Stop.
func (l *Listener) Subscribe(kind Kind) <-chan Notification {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	ch := make(chan Notification, l.opts.BufferSize)
	if l.closed {
		close(ch)
		return ch
	}
	l.subs[kind] = append(l.subs[kind], ch)
	return ch
}

// Handle registers a callback invoked synchronously for every
// notification. A panicking callback is logged and skipped.
func (l *Listener) Handle(fn func(Notification)) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	l.handlers = append(l.handlers, fn)
}

// SetShortcuts replaces the shortcut table.
func (l *Listener) SetShortcuts(t *shortcut.Table) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opts.Shortcuts = t
}

// SetTypingTimeout replaces the typing timeout.
func (l *Listener) SetTypingTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opts.TypingTimeout = d
}

// HotkeyTimeout returns the configured hotkey timeout.
func (l *Listener) HotkeyTimeout() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opts.HotkeyTimeout
}

// Snapshot returns a copy of the tracker state.
func (l *Listener) Snapshot() keytrack.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracker.Snapshot()
}

// Stats returns the counters.
func (l *Listener) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// HandleEvent processes one event and returns the notifications it produced.
func (l *Listener) HandleEvent(ev Event) []Notification {
	switch ev.Op {
	case OpPress:
		return l.Press(ev.Key)
	case OpRelease:
		return l.Release(ev.Key)
	default:
		return nil
	}
}

// Press processes a key-down.
func (l *Listener) Press(k keytrack.Key) []Notification {
	k = normalize(k)

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stats.Presses++
	out := l.press(k)
	l.mu.Unlock()

	l.deliver(out)
	return out
}

func (l *Listener) press(k keytrack.Key) []Notification {
	var out []Notification

	// Esc fires on its own and then joins the chord like any other key,
	// so it can still form combinations such as "esc+a".
	if l.opts.EscHotkey && k.Name == "esc" && !l.tracker.HotkeySent("esc") {
		out = append(out, l.hotkey("esc", []string{"esc"}, l.clock()))
	}

	if l.opts.CtrlCharHotkeys && k.HasChar() && k.Char < 32 {
		if letter, ok := keytrack.CtrlLetter(k.Char); ok {
			combo := "ctrl+" + string(letter)
			if l.tracker.HotkeySent(combo) {
				return out
			}
			return append(out, l.dispatch(combo, []string{"ctrl", string(letter)})...)
		}
	}

	t := l.tracker
	if t.IsPressed(k.Name) {
		return out
	}
	t.Press(k)

	if !t.IsHotkey() {
		t.SetTypingMode(true)
		t.Type(k)
		return out
	}

	combo := t.Combination()
	if !t.ShouldSendHotkey(k) || t.HotkeySent(combo) {
		return out
	}
	return append(out, l.dispatch(combo, t.ChordTokens())...)
}

// dispatch flushes pending text, fires the hotkey and leaves typing mode.
func (l *Listener) dispatch(combo string, keys []string) []Notification {
	t := l.tracker
	now := l.clock()

	var out []Notification
	if n, ok := l.flush(now); ok {
		out = append(out, n)
	}
	out = append(out, l.hotkey(combo, keys, now))

	t.RecordHotkey(now)
	t.SetTypingMode(false)
	return out
}

// hotkey builds a hotkey notification and marks combo as sent for the
// current chord.
func (l *Listener) hotkey(combo string, keys []string, now time.Time) Notification {
	action, _ := l.opts.Shortcuts.Lookup(combo)
	l.stats.Hotkeys++
	l.tracker.MarkHotkeySent(combo)

	l.log.Debug("hotkey dispatched", "combination", combo, "action", action)
	return Notification{
		Kind:        KindHotkey,
		SessionID:   l.sessionID,
		Time:        now,
		Combination: combo,
		Keys:        keys,
		Action:      action,
	}
}

// flush drains typed text into a notification.
func (l *Listener) flush(now time.Time) (Notification, bool) {
	text := l.tracker.Flush()
	if text == "" {
		return Notification{}, false
	}
	l.stats.Typings++
	l.log.Debug("typing flushed", "text", text)
	return Notification{
		Kind:      KindTyping,
		SessionID: l.sessionID,
		Time:      now,
		Text:      text,
	}, true
}

// Release processes a key-up. Idle text is flushed only once every key
// has been released.
func (l *Listener) Release(k keytrack.Key) []Notification {
	k = normalize(k)

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stats.Releases++

	t := l.tracker
	t.Release(k)

	var out []Notification
	if t.PressedCount() == 0 {
		t.ClearSentHotkeys()
		if n, ok := l.flushIdle(l.clock()); ok {
			out = append(out, n)
		}
	}
	l.mu.Unlock()

	l.deliver(out)
	return out
}

// FlushIdle flushes typed text if typing has been idle for longer than the
// typing timeout. Hosts without regular key releases call it periodically.
func (l *Listener) FlushIdle() []Notification {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	var out []Notification
	if n, ok := l.flushIdle(l.clock()); ok {
		out = append(out, n)
	}
	l.mu.Unlock()

	l.deliver(out)
	return out
}

func (l *Listener) flushIdle(now time.Time) (Notification, bool) {
	t := l.tracker
	if !t.TypingMode() || now.Sub(t.LastKeyTime()) <= l.opts.TypingTimeout {
		return Notification{}, false
	}
	return l.flush(now)
}

// Stop flushes pending text, resets the tracker and closes every
// subscriber channel. It is safe to call more than once.
func (l *Listener) Stop() []Notification {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true

	var out []Notification
	if n, ok := l.flush(l.clock()); ok {
		out = append(out, n)
	}
	l.tracker.Reset()
	stats := l.stats
	l.mu.Unlock()

	l.deliver(out)

	l.subMu.Lock()
	l.closed = true
	for kind, chans := range l.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(l.subs, kind)
	}
	l.subMu.Unlock()

	l.log.Info("listener stopped",
		"presses", stats.Presses,
		"hotkeys", stats.Hotkeys,
		"typings", stats.Typings,
		"dropped", stats.Dropped,
	)
	return out
}

// Run feeds events into the listener until the channel closes or
// ctx is done, flushing idle text in between. It stops the listener before
// returning.
func (l *Listener) Run(ctx context.Context, events <-chan Event) error {
	l.mu.Lock()
	stopped := l.stopped
	interval := max(l.opts.TypingTimeout/2, minFlushInterval)
	l.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	defer l.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.log.Info("listener running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			l.HandleEvent(ev)
		case <-ticker.C:
			l.FlushIdle()
		}
	}
}

// RunSource starts src and runs the listener on its events.
func (l *Listener) RunSource(ctx context.Context, src Source) error {
	events, err := src.Start()
	if err != nil {
		return err
	}
	defer src.Stop()
	return l.Run(ctx, events)
}

func (l *Listener) deliver(ns []Notification) {
	if len(ns) == 0 {
		return
	}

	l.subMu.Lock()
	handlers := l.handlers
	var dropped uint64
	if !l.closed {
		for _, n := range ns {
			for _, ch := range l.subs[n.Kind] {
				select {
				case ch <- n:
				default:
					dropped++
				}
			}
		}
	}
	l.subMu.Unlock()

	if dropped > 0 {
		l.mu.Lock()
		l.stats.Dropped += dropped
		l.mu.Unlock()
		l.log.Warn("subscriber channel full, notifications dropped", "count", dropped)
	}

	for _, n := range ns {
		for _, fn := range handlers {
			l.log.Recover("notification handler", func() { fn(n) })
		}
	}
}

// normalize names character keys that arrive without a name.
func normalize(k keytrack.Key) keytrack.Key {
	if k.Name == "" && k.HasChar() {
		k.Name = keytrack.CharKey(k.Char).Name
	}
	return k
}
