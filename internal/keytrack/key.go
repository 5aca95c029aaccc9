package keytrack

// NoChar marks a Key that produced no character.
const NoChar rune = 0

// Key describes one press or release of a physical key.
//
// Name is the symbolic key name ("ctrl_l", "enter", "a"). Char is the
// character the key produced, or NoChar. Control bytes produced by Ctrl
// chords (0x01 for Ctrl+A and so on) are carried in Char as-is.
type Key struct {
	Name string
	Char rune
}

// NamedKey returns a Key for a key that produced no character.
func NamedKey(name string) Key {
	return Key{Name: name}
}

// CharKey returns a Key for a character-producing key. The name is derived
// from the character, except for ' ' which is named "space".
func CharKey(r rune) Key {
	if r == ' ' {
		return Key{Name: "space", Char: r}
	}
	return Key{Name: string(r), Char: r}
}

// HasChar reports whether the key produced a character.
func (k Key) HasChar() bool {
	return k.Char != NoChar
}

// Printable reports whether the key produced a printable character.
func (k Key) Printable() bool {
	return k.Char != NoChar && k.Char >= 32
}

// String returns the key name, or the character when the name is empty.
func (k Key) String() string {
	if k.Name == "" && k.HasChar() {
		return string(k.Char)
	}
	return k.Name
}
