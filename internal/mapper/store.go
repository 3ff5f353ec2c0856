package mapper

import "errors"

// ErrNotFound is wrapped by store lookups for ids with no stored row.
var ErrNotFound = errors.New("not found")

// StoredSession wraps a Session with its database identity.
// CalibrationID links back to the stored calibration the session was
// fitted against, when there was one; the session blob itself embeds a
// copy of the calibration, so the link is informational.
type StoredSession struct {
	ID            string
	CalibrationID string
	Session       *Session
}

// SessionStore defines the persistence operations for mapping sessions.
type SessionStore interface {
	InsertSession(sess *StoredSession) error
	GetSession(id string) (*StoredSession, error)
	ListSessions(limit int) ([]*StoredSession, error)
	DeleteSession(id string) error
}
