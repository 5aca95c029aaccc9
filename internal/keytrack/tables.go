package keytrack

// modifierKeys participate in chords but are never typed as text.
var modifierKeys = map[string]struct{}{
	"ctrl_l": {}, "ctrl_r": {},
	"alt_l": {}, "alt_r": {},
	"shift_l": {}, "shift_r": {},
	"cmd_l": {}, "cmd_r": {},
	"tab": {}, "esc": {},
	"f1": {}, "f2": {}, "f3": {}, "f4": {}, "f5": {}, "f6": {},
	"f7": {}, "f8": {}, "f9": {}, "f10": {}, "f11": {}, "f12": {},
}

// controlKeys perform an action instead of producing text.
var controlKeys = map[string]struct{}{
	"enter": {}, "backspace": {}, "delete": {}, "insert": {},
	"home": {}, "end": {}, "page_up": {}, "page_down": {},
	"up": {}, "down": {}, "left": {}, "right": {},
}

// canonicalModifiers maps side-specific modifier names to one token.
var canonicalModifiers = map[string]string{
	"ctrl_l": "ctrl", "ctrl_r": "ctrl",
	"alt_l": "alt", "alt_r": "alt",
	"shift_l": "shift", "shift_r": "shift",
	"cmd_l": "cmd", "cmd_r": "cmd",
}

// modifierOrder is the fixed leading order of a formatted combination.
var modifierOrder = []string{"ctrl", "alt", "shift", "cmd"}

// ctrlMap translates the control bytes produced by Ctrl+A..Ctrl+Z back to
// their letters.
var ctrlMap = func() map[rune]rune {
	m := make(map[rune]rune, 26)
	for b := rune(0x01); b <= 0x1a; b++ {
		m[b] = 'a' + b - 1
	}
	return m
}()

// IsModifier reports whether name is a modifier key name.
func IsModifier(name string) bool {
	_, ok := modifierKeys[name]
	return ok
}

// IsControl reports whether name is a control key name.
func IsControl(name string) bool {
	_, ok := controlKeys[name]
	return ok
}

// isModifierToken reports whether a resolved token names a modifier, either
// as a raw key name or in its canonical form.
func isModifierToken(token string) bool {
	if IsModifier(token) {
		return true
	}
	for _, m := range modifierOrder {
		if token == m {
			return true
		}
	}
	return false
}

// Canonicalize maps left and right modifier variants to a single token.
// Other names are returned unchanged.
func Canonicalize(name string) string {
	if c, ok := canonicalModifiers[name]; ok {
		return c
	}
	return name
}

// CtrlLetter returns the letter a Ctrl+letter control byte stands for.
func CtrlLetter(r rune) (rune, bool) {
	l, ok := ctrlMap[r]
	return l, ok
}
