// Package monitoring is the diagnostics sink for the enforcement pipeline.
// Warning-class events (abandoned passages, invalid timing, bus drops,
// plate validation failures) are reported here rather than failing the
// stage that observed them.
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
