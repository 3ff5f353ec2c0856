package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sidewalk-data/trajectory.report/internal/mapper"
)

// SessionStore provides persistence for plane-mapping sessions.
type SessionStore struct {
	db *sql.DB
}

var _ mapper.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a SessionStore backed by the given database.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// InsertSession persists a mapping session. If ID is empty, a UUID is generated.
func (s *SessionStore) InsertSession(sess *mapper.StoredSession) error {
	if sess.Session == nil {
		return fmt.Errorf("stored session has no session")
	}
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.Session.CreatedAt.IsZero() {
		sess.Session.CreatedAt = time.Now()
	}

	blob, err := sess.Session.Marshal()
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	var calID interface{}
	if sess.CalibrationID != "" {
		calID = sess.CalibrationID
	}

	var meanError, maxError float64
	var inlierCount int
	if r := sess.Session.Report; r != nil {
		meanError = r.MeanError
		maxError = r.MaxError
		inlierCount = r.InlierCount
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO mapper_sessions (
				id, name, calibration_id, point_count,
				mean_error, max_error, inlier_count,
				blob, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.Session.Name, calID, len(sess.Session.Correspondences),
			meanError, maxError, inlierCount,
			blob, sess.Session.CreatedAt.UnixNano(),
		)
		return err
	})
}

// GetSession returns a single session by ID.
func (s *SessionStore) GetSession(id string) (*mapper.StoredSession, error) {
	row := s.db.QueryRow(`
		SELECT id, calibration_id, blob
		FROM mapper_sessions
		WHERE id = ?`, id)

	var sess mapper.StoredSession
	var calID sql.NullString
	var blob []byte
	err := row.Scan(&sess.ID, &calID, &blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %s: %w", id, mapper.ErrNotFound)
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	decoded, err := mapper.UnmarshalSession(blob)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	sess.Session = decoded
	if calID.Valid {
		sess.CalibrationID = calID.String
	}
	return &sess, nil
}

// ListSessions returns sessions ordered by creation time descending.
// A non-positive limit falls back to 100.
func (s *SessionStore) ListSessions(limit int) ([]*mapper.StoredSession, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, calibration_id, blob
		FROM mapper_sessions
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*mapper.StoredSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session by ID.
func (s *SessionStore) DeleteSession(id string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM mapper_sessions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("session %s: %w", id, mapper.ErrNotFound)
		}
		return nil
	})
}

// scanSession scans a session row from a sql.Rows cursor.
func scanSession(rows *sql.Rows) (*mapper.StoredSession, error) {
	var sess mapper.StoredSession
	var calID sql.NullString
	var blob []byte
	if err := rows.Scan(&sess.ID, &calID, &blob); err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	decoded, err := mapper.UnmarshalSession(blob)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	sess.Session = decoded
	if calID.Valid {
		sess.CalibrationID = calID.String
	}
	return &sess, nil
}
