// Package keytrack classifies a stream of raw key presses and releases.
//
// A Tracker holds the set of keys currently held down and decides, per
// event, whether the chord is a hotkey or the user is typing text. Hotkeys
// are formatted canonically ("ctrl+shift+a") so that the same physical chord
// always yields the same string regardless of press order or which side of
// the keyboard a modifier came from. Printable characters accumulate in a
// buffer that the host drains with Flush.
//
// A Tracker does no I/O and takes no locks. Callers feeding it from more
// than one goroutine must serialize access themselves.
package keytrack
