package shortcut

import (
	"strings"
	"testing"

	"keytrack/internal/keytrack"
)

func TestParseSuccess(t *testing.T) {
	tests := []struct {
		spec string
		want string
	}{
		{"Ctrl+R", "ctrl+r"},
		{"ctrl+p", "ctrl+p"},
		{"ctrl+,", "ctrl+,"},
		{"esc", "esc"},
		{"Escape", "esc"},
		{"Shift+Ctrl+T", "ctrl+shift+t"},
		{"control+option+del", "ctrl+alt+delete"},
		{"Win+Shift+S", "shift+cmd+s"},
		{"alt+F4", "alt+f4"},
		{"ctrl+PgDn", "ctrl+page_down"},
		{"ctrl++", "ctrl++"},
		{"+", "+"},
		{" ctrl + shift + a ", "ctrl+shift+a"},
		{"tab+ctrl+x", "ctrl+tab+x"},
		{"b+a", "a+b"},
	}
	for _, tc := range tests {
		t.Run(tc.spec, func(t *testing.T) {
			b, err := Parse(tc.spec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.Combo() != tc.want {
				t.Errorf("Parse(%q) = %q, want %q", tc.spec, b.Combo(), tc.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr string
	}{
		{"", "empty"},
		{"   ", "empty"},
		{"ctrl+", "empty key"},
		{"+a", "empty key"},
		{"ctrl++a", "empty key"},
		{"ctrl+control+a", "repeated"},
	}
	for _, tc := range tests {
		t.Run(tc.spec, func(t *testing.T) {
			_, err := Parse(tc.spec)
			if err == nil {
				t.Fatalf("expected error for %q", tc.spec)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseMatchesTracker(t *testing.T) {
	b, err := Parse("Shift+Ctrl+T")
	if err != nil {
		t.Fatal(err)
	}

	tr := keytrack.New()
	tr.Press(keytrack.NamedKey("shift_r"))
	tr.Press(keytrack.NamedKey("ctrl_l"))
	tr.Press(keytrack.NamedKey("t"))

	if tr.Combination() != b.Combo() {
		t.Errorf("tracker %q != binding %q", tr.Combination(), b.Combo())
	}
}

func TestTable(t *testing.T) {
	table, err := NewTable(map[string]string{
		"record":   "ctrl+r",
		"play":     "Ctrl+P",
		"settings": "ctrl+,",
		"back":     "esc",
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	if table.Len() != 4 {
		t.Errorf("expected 4 bindings, got %d", table.Len())
	}
	if action, ok := table.Lookup("ctrl+p"); !ok || action != "play" {
		t.Errorf("Lookup(ctrl+p) = %q, %v", action, ok)
	}
	if _, ok := table.Lookup("ctrl+q"); ok {
		t.Error("ctrl+q should not be bound")
	}
	if b, ok := table.Binding("settings"); !ok || b.Combo() != "ctrl+," {
		t.Errorf("Binding(settings) = %v, %v", b, ok)
	}
	want := []string{"back", "play", "record", "settings"}
	got := table.Actions()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Actions() = %v, want %v", got, want)
		}
	}
}

func TestTableDuplicateCombo(t *testing.T) {
	_, err := NewTable(map[string]string{
		"a": "ctrl+shift+x",
		"b": "Shift+Ctrl+X",
	})
	if err == nil {
		t.Fatal("expected duplicate combination error")
	}
	if !strings.Contains(err.Error(), "already bound") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTableInvalidBinding(t *testing.T) {
	if _, err := NewTable(map[string]string{"broken": "ctrl+"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNilTable(t *testing.T) {
	var table *Table
	if _, ok := table.Lookup("ctrl+a"); ok {
		t.Error("nil table should not match")
	}
	if table.Len() != 0 || table.Actions() != nil {
		t.Error("nil table should be empty")
	}
}
