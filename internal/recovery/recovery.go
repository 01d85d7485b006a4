// Package recovery provides panic recovery utilities for goroutines.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// RecoverWithLog recovers from panics and logs them with the provided logger.
// Use this with defer at the start of goroutines that must not take the
// process down, such as the health server.
//
// Example:
//
//	go func() {
//	    defer recovery.RecoverWithLog(logger, "health")
//	    // ... goroutine work
//	}()
func RecoverWithLog(logger *slog.Logger, name string) {
	if r := recover(); r != nil {
		logPanic(logger, name, r)
	}
}

// RecoverToError recovers from a panic, logs it and stores it in *errp.
// It must be deferred directly by a function with a named error result:
//
//	func (r *Relay) Run(ctx context.Context) (err error) {
//	    defer recovery.RecoverToError(r.logger, "relay", &err)
//	    ...
//	}
func RecoverToError(logger *slog.Logger, name string, errp *error) {
	if r := recover(); r != nil {
		logPanic(logger, name, r)
		if errp != nil {
			*errp = fmt.Errorf("%s: panic: %v", name, r)
		}
	}
}

func logPanic(logger *slog.Logger, name string, r interface{}) {
	logger.Error("panic recovered",
		"goroutine", name,
		"panic", fmt.Sprintf("%v", r),
		"stack", string(debug.Stack()))
}
