package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sidewalk-data/trajectory.report/internal/camera"
)

// CalibrationStore provides persistence for camera calibrations. The
// calibration itself travels as an opaque versioned blob; the summary
// columns (lens model, image size, RMS) are denormalised at insert
// time so rows can be inspected without decoding.
type CalibrationStore struct {
	db *sql.DB
}

var _ camera.Store = (*CalibrationStore)(nil)

// NewCalibrationStore creates a CalibrationStore backed by the given database.
func NewCalibrationStore(db *sql.DB) *CalibrationStore {
	return &CalibrationStore{db: db}
}

// InsertCalibration persists a calibration. If ID is empty, a UUID is generated.
func (s *CalibrationStore) InsertCalibration(cal *camera.StoredCalibration) error {
	if cal.Result == nil {
		return fmt.Errorf("calibration %q has no result", cal.Name)
	}
	if cal.ID == "" {
		cal.ID = uuid.New().String()
	}
	if cal.CreatedAt.IsZero() {
		cal.CreatedAt = time.Now()
	}

	blob, err := cal.Result.Marshal()
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO calibrations (
				id, name, lens_model, image_width, image_height,
				rms, images_used, blob, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cal.ID, cal.Name, string(cal.Result.Model),
			cal.Result.ImageWidth, cal.Result.ImageHeight,
			cal.Result.RMS, len(cal.Result.ImagesUsed),
			blob, cal.CreatedAt.UnixNano(),
		)
		return err
	})
}

// GetCalibration returns a single calibration by ID.
func (s *CalibrationStore) GetCalibration(id string) (*camera.StoredCalibration, error) {
	row := s.db.QueryRow(`
		SELECT id, name, blob, created_at
		FROM calibrations
		WHERE id = ?`, id)

	var cal camera.StoredCalibration
	var blob []byte
	var createdAt int64
	err := row.Scan(&cal.ID, &cal.Name, &blob, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("calibration %s: %w", id, camera.ErrNotFound)
		}
		return nil, fmt.Errorf("scan calibration: %w", err)
	}

	result, err := camera.UnmarshalCalibration(blob)
	if err != nil {
		return nil, fmt.Errorf("calibration %s: %w", id, err)
	}
	cal.Result = result
	cal.CreatedAt = time.Unix(0, createdAt)
	return &cal, nil
}

// ListCalibrations returns calibrations ordered by creation time
// descending. A non-positive limit falls back to 100.
func (s *CalibrationStore) ListCalibrations(limit int) ([]*camera.StoredCalibration, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, name, blob, created_at
		FROM calibrations
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query calibrations: %w", err)
	}
	defer rows.Close()

	var cals []*camera.StoredCalibration
	for rows.Next() {
		c, err := scanCalibration(rows)
		if err != nil {
			return nil, err
		}
		cals = append(cals, c)
	}
	return cals, rows.Err()
}

// DeleteCalibration removes a calibration by ID.
func (s *CalibrationStore) DeleteCalibration(id string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM calibrations WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete calibration: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("calibration %s: %w", id, camera.ErrNotFound)
		}
		return nil
	})
}

// scanCalibration scans a calibration row from a sql.Rows cursor.
func scanCalibration(rows *sql.Rows) (*camera.StoredCalibration, error) {
	var cal camera.StoredCalibration
	var blob []byte
	var createdAt int64
	if err := rows.Scan(&cal.ID, &cal.Name, &blob, &createdAt); err != nil {
		return nil, fmt.Errorf("scan calibration row: %w", err)
	}
	result, err := camera.UnmarshalCalibration(blob)
	if err != nil {
		return nil, fmt.Errorf("calibration %s: %w", cal.ID, err)
	}
	cal.Result = result
	cal.CreatedAt = time.Unix(0, createdAt)
	return &cal, nil
}
