package journal

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"keytrack/internal/keytrack"
	"keytrack/internal/listener"
	"keytrack/internal/logging"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

var base = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func hotkey(session, combo string, at time.Duration) listener.Notification {
	return listener.Notification{
		Kind:        listener.KindHotkey,
		SessionID:   session,
		Time:        base.Add(at),
		Combination: combo,
		Keys:        strings.Split(combo, "+"),
	}
}

func typing(session, text string, at time.Duration) listener.Notification {
	return listener.Notification{
		Kind:      listener.KindTyping,
		SessionID: session,
		Time:      base.Add(at),
		Text:      text,
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "nested", "dir", "journal.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := j.Record(hotkey("s1", "ctrl+c", 0)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	j.Close()

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer j.Close()
	s, err := j.Session("s1")
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if s.Hotkeys != 1 {
		t.Errorf("expected 1 hotkey after reopen, got %d", s.Hotkeys)
	}
}

func TestCloseNilDB(t *testing.T) {
	j := &Journal{}
	if err := j.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
}

func TestRecordAndReadBack(t *testing.T) {
	j := openTestJournal(t)

	in := []listener.Notification{
		typing("s1", "hello", 0),
		hotkey("s1", "ctrl+s", time.Second),
		hotkey("s1", "esc", 2*time.Second),
	}
	in[1].Action = "save"

	var lastID int64
	for _, n := range in {
		id, err := j.Record(n)
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if id <= lastID {
			t.Errorf("ids should increase: %d after %d", id, lastID)
		}
		lastID = id
	}

	out, err := j.Notifications("s1")
	if err != nil {
		t.Fatalf("Notifications failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d notifications, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].Kind != in[i].Kind || out[i].Combination != in[i].Combination ||
			out[i].Text != in[i].Text || out[i].Action != in[i].Action {
			t.Errorf("notification %d: got %+v, want %+v", i, out[i], in[i])
		}
		if !out[i].Time.Equal(in[i].Time) {
			t.Errorf("notification %d time: got %v, want %v", i, out[i].Time, in[i].Time)
		}
	}
	if len(out[1].Keys) != 2 || out[1].Keys[0] != "ctrl" || out[1].Keys[1] != "s" {
		t.Errorf("keys not preserved: %v", out[1].Keys)
	}
	if out[0].Keys != nil {
		t.Errorf("typing notification should have no keys: %v", out[0].Keys)
	}
}

func TestRecordRequiresSession(t *testing.T) {
	j := openTestJournal(t)
	if _, err := j.Record(listener.Notification{Kind: listener.KindHotkey}); err == nil {
		t.Error("expected error for notification without session")
	}
}

func TestSessions(t *testing.T) {
	j := openTestJournal(t)

	j.Record(typing("old", "a", 0))
	j.Record(hotkey("new", "ctrl+c", time.Hour))
	j.Record(hotkey("new", "ctrl+v", time.Hour+time.Second))

	sessions, err := j.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "new" || sessions[1].ID != "old" {
		t.Errorf("sessions not ordered newest first: %+v", sessions)
	}
	if sessions[0].Hotkeys != 2 || sessions[0].Typings != 0 {
		t.Errorf("unexpected counts for new: %+v", sessions[0])
	}
	if sessions[1].Typings != 1 {
		t.Errorf("unexpected counts for old: %+v", sessions[1])
	}
	if !sessions[0].Started.Equal(base.Add(time.Hour)) {
		t.Errorf("start should be the first notification time: %v", sessions[0].Started)
	}
	if !sessions[0].Open() {
		t.Error("session should be open until ended")
	}
}

func TestEndSession(t *testing.T) {
	j := openTestJournal(t)
	j.Record(hotkey("s1", "esc", 0))

	end := base.Add(time.Minute)
	if err := j.EndSession("s1", end); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	s, err := j.Session("s1")
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if s.Open() || !s.Ended.Equal(end) {
		t.Errorf("expected session ended at %v, got %+v", end, s)
	}

	if err := j.EndSession("missing", end); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionNotFound(t *testing.T) {
	j := openTestJournal(t)

	if _, err := j.Session("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Session: expected ErrNotFound, got %v", err)
	}
	if _, err := j.Notifications("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Notifications: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	j := openTestJournal(t)
	j.Record(hotkey("s1", "esc", 0))
	j.Record(hotkey("s2", "esc", 0))

	if err := j.DeleteSession("s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := j.Session("s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted session still present: %v", err)
	}
	top, err := j.TopCombinations(5)
	if err != nil {
		t.Fatalf("TopCombinations failed: %v", err)
	}
	if len(top) != 1 || top[0].Count != 1 {
		t.Errorf("notifications of deleted session should cascade: %+v", top)
	}
	if err := j.DeleteSession("s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestTopCombinations(t *testing.T) {
	j := openTestJournal(t)
	for i, c := range []string{"ctrl+c", "ctrl+v", "ctrl+c", "esc", "ctrl+c", "ctrl+v"} {
		j.Record(hotkey("s", c, time.Duration(i)*time.Second))
	}
	j.Record(typing("s", "ignored", 10*time.Second))

	top, err := j.TopCombinations(2)
	if err != nil {
		t.Fatalf("TopCombinations failed: %v", err)
	}
	want := []ComboCount{{"ctrl+c", 3}, {"ctrl+v", 2}}
	if len(top) != len(want) {
		t.Fatalf("expected %v, got %v", want, top)
	}
	for i := range want {
		if top[i] != want[i] {
			t.Errorf("rank %d: got %v, want %v", i, top[i], want[i])
		}
	}
}

func TestAttach(t *testing.T) {
	j := openTestJournal(t)

	opts := listener.DefaultOptions()
	opts.Logger = logging.Discard()
	l := listener.New(opts)
	j.Attach(l, logging.Discard())

	l.Press(keytrack.CharKey('x'))
	l.Release(keytrack.CharKey('x'))
	l.Press(keytrack.NamedKey("esc"))
	l.Stop()

	out, err := j.Notifications(l.SessionID())
	if err != nil {
		t.Fatalf("Notifications failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected hotkey and typing, got %+v", out)
	}
	if out[0].Combination != "esc" || out[1].Text != "x" {
		t.Errorf("unexpected journal contents: %+v", out)
	}
}
