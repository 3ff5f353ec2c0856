package track

import (
	"errors"
	"time"

	"github.com/sidewalk-data/trajectory.report/internal/motion"
)

// ErrNotFound is wrapped by store lookups for run ids with no stored
// row.
var ErrNotFound = errors.New("not found")

// Run is the persisted record of one smoothing execution over a batch
// of tracks.
type Run struct {
	ID           string
	CreatedAt    time.Time
	SessionID    string // mapper session applied to the input, empty for world-space batches
	Source       string // caller-facing label for the input, usually a file name
	Config       motion.Config
	TrackCount   int
	FailureCount int
}

// Store defines the persistence operations for smoothing runs and
// their per-frame output.
type Store interface {
	InsertRun(run *Run, tracks []SmoothedTrack, failures []Failure) error
	GetRun(runID string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)
	GetRunTracks(runID string) ([]SmoothedTrack, error)
	GetRunFailures(runID string) ([]Failure, error)
	DeleteRun(runID string) error
}
