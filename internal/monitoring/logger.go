// Package monitoring holds the core's shared diagnostic logging hook. The
// pipeline (C1-C8) never imports the stdlib log package directly outside
// this file — every stage logs through Logf so a CLI or test harness can
// redirect or mute pipeline diagnostics without touching package globals
// elsewhere.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
