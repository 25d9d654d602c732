package utils

import "runtime/debug"

// HandlePanic must be deferred directly. It swallows a panic of the current
// goroutine and reports it to onPanic together with the stack.
func HandlePanic(onPanic func(r interface{}, stack []byte)) {
	if r := recover(); r != nil {
		onPanic(r, debug.Stack())
	}
}
