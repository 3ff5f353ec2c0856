package sqlite

import (
	"strings"
	"time"
)

const (
	busyMaxAttempts  = 5
	busyInitialDelay = 10 * time.Millisecond
)

// isSQLiteBusy reports whether an error is a transient SQLITE_BUSY
// lock conflict. modernc.org/sqlite surfaces these as plain errors, so
// we match on the message.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// retryOnBusy runs fn, retrying with exponential backoff while it
// returns a busy error. Non-busy errors are returned immediately.
func retryOnBusy(fn func() error) error {
	delay := busyInitialDelay
	var err error
	for attempt := 0; attempt < busyMaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		err = fn()
		if err == nil || !isSQLiteBusy(err) {
			return err
		}
	}
	return err
}
