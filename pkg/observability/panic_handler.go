package observability

import (
	"runtime/debug"
)

// RecoverPanic logs a recovered panic from a background goroutine and lets the
// goroutine return normally. Call it directly in a defer statement:
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "schema watcher")
//	    ...
//	}()
//
// A nil logger falls back to the default logger.
func RecoverPanic(logger *Logger, component string) {
	r := recover()
	if r == nil {
		return
	}
	if logger == nil {
		logger = defaultLogger
	}
	logger.WithFields(map[string]interface{}{
		"panic":     r,
		"component": component,
		"stack":     string(debug.Stack()),
	}).Error("PANIC recovered")
}
