// Package utils holds small concurrency helpers shared by metaexp packages.
package utils

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError wraps a panic value as an error
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func newPanicError(r any) *PanicError {
	err := &PanicError{Value: r, StackTrace: string(debug.Stack())}
	slog.Error("Recovered from panic", "panic", r, "stack", err.StackTrace)
	return err
}

// RecoverAsError recovers from a panic and stores it in *errPtr. It must be
// deferred directly.
//
//	func refit() (err error) {
//	    defer RecoverAsError(&err)
//	    // ... gonum calls that panic on dimension mismatch
//	}
func RecoverAsError(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = newPanicError(r)
	}
}

// RecoverWithCallback recovers from a panic and hands it to callback. It must
// be deferred directly.
func RecoverWithCallback(callback func(error)) {
	if r := recover(); r != nil {
		err := newPanicError(r)
		if callback != nil {
			callback(err)
		}
	}
}
