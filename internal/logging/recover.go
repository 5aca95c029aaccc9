package logging

import (
	"fmt"
	"runtime/debug"
)

// Recover runs fn and turns a panic into an error log entry, so that a
// misbehaving callback cannot take down the event loop. It reports whether
// fn returned normally.
func (l *Logger) Recover(op string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			l.Error("recovered panic",
				"op", op,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()
	fn()
	return true
}
