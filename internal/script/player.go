package script

import (
	"context"
	"io"
	"sync"
	"time"

	"keytrack/internal/listener"
)

// Clock is a virtual clock for deterministic replay. Time only moves when
// a wait step advances it.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the virtual time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Replay drives l through steps on a virtual clock: wait steps advance clk
// and give the listener a chance to flush idle text. The listener must
// have been created with clk.Now as its clock. Replay does not stop l.
func Replay(ctx context.Context, l *listener.Listener, clk *Clock, steps []Step) ([]listener.Notification, error) {
	var out []listener.Notification
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if ev, ok := s.Event(); ok {
			out = append(out, l.HandleEvent(ev)...)
			continue
		}
		clk.Advance(s.Duration())
		out = append(out, l.FlushIdle()...)
	}
	return out, nil
}

// Events converts steps into a channel of listener events in real time,
// sleeping through wait steps. The channel is closed when steps are
// exhausted or ctx is done.
func Events(ctx context.Context, steps []Step) <-chan listener.Event {
	ch := make(chan listener.Event)
	go func() {
		defer close(ch)
		for _, s := range steps {
			if !emit(ctx, ch, s) {
				return
			}
		}
	}()
	return ch
}

// StreamEvents is Events for a JSON lines stream. Decoding errors are
// delivered on the error channel, which receives at most one value and is
// closed together with the event channel.
func StreamEvents(ctx context.Context, r io.Reader) (<-chan listener.Event, <-chan error) {
	ch := make(chan listener.Event)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(ch)
		err := Stream(ctx, r, func(s Step) error {
			if !emit(ctx, ch, s) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			errc <- err
		}
	}()
	return ch, errc
}

func emit(ctx context.Context, ch chan<- listener.Event, s Step) bool {
	ev, ok := s.Event()
	if !ok {
		timer := time.NewTimer(s.Duration())
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		}
	}
	select {
	case <-ctx.Done():
		return false
	case ch <- ev:
		return true
	}
}
