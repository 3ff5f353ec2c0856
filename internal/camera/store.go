package camera

import (
	"errors"
	"time"
)

// ErrNotFound is wrapped by store lookups for ids with no stored row.
var ErrNotFound = errors.New("not found")

// StoredCalibration wraps a CalibrationResult with its database
// identity.
type StoredCalibration struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Result    *CalibrationResult
}

// Store defines the persistence operations for camera calibrations.
type Store interface {
	InsertCalibration(cal *StoredCalibration) error
	GetCalibration(id string) (*StoredCalibration, error)
	ListCalibrations(limit int) ([]*StoredCalibration, error)
	DeleteCalibration(id string) error
}
