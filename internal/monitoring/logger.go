// Package monitoring carries the diagnostic log hook used by the
// long-running pipeline stages. Batch smoothing reports per-track
// failures and batch summaries through Logf so embedders can redirect
// or mute the stream without touching the global log package.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or embedding code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
