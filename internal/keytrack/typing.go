package keytrack

// Type adds a key to the typed text buffer. Backspace removes the last
// character, space appends ' ', and any other key appends its character if
// it is printable. Control characters are dropped.
func (t *Tracker) Type(k Key) {
	switch k.Name {
	case "backspace":
		if n := len(t.typed); n > 0 {
			t.typed = t.typed[:n-1]
		}
	case "space":
		t.typed = append(t.typed, ' ')
	default:
		if k.Printable() {
			t.typed = append(t.typed, k.Char)
		}
	}
}

// Buffered returns the typed text without clearing it.
func (t *Tracker) Buffered() string {
	return string(t.typed)
}

// Flush returns the typed text and clears the buffer.
func (t *Tracker) Flush() string {
	text := string(t.typed)
	t.typed = t.typed[:0]
	return text
}
