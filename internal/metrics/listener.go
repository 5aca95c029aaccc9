package metrics

import (
	"unicode/utf8"

	"keytrack/internal/listener"
)

// ListenerMetrics counts what a listener emits.
type ListenerMetrics struct {
	registry *Registry

	Typings    *Counter
	TypedChars *Histogram
	Dropped    *Gauge
	Presses    *Gauge
}

// NewListenerMetrics registers the listener metrics in registry.
func NewListenerMetrics(registry *Registry) *ListenerMetrics {
	return &ListenerMetrics{
		registry: registry,
		Typings: registry.Counter("typing_flushes_total",
			"Total number of typed text runs flushed", nil),
		TypedChars: registry.Histogram("typing_flush_chars",
			"Characters per flushed typing run", nil, LengthBuckets),
		Dropped: registry.Gauge("notifications_dropped",
			"Notifications dropped because a subscriber was full", nil),
		Presses: registry.Gauge("key_presses",
			"Key-down events processed", nil),
	}
}

// Hotkey returns the dispatch counter for one combination.
func (m *ListenerMetrics) Hotkey(combination string) *Counter {
	return m.registry.Counter("hotkeys_total",
		"Total number of hotkeys dispatched", Labels{"combination": combination})
}

// Observe updates the metrics for one notification.
func (m *ListenerMetrics) Observe(n listener.Notification) {
	switch n.Kind {
	case listener.KindHotkey:
		m.Hotkey(n.Combination).Inc()
	case listener.KindTyping:
		m.Typings.Inc()
		m.TypedChars.Observe(float64(utf8.RuneCountInString(n.Text)))
	}
}

// Attach observes every notification l emits and samples its counters
// on scrape.
func (m *ListenerMetrics) Attach(l *listener.Listener) {
	l.Handle(m.Observe)
	m.registry.OnScrape(func() {
		s := l.Stats()
		m.Dropped.Set(int64(s.Dropped))
		m.Presses.Set(int64(s.Presses))
	})
}
