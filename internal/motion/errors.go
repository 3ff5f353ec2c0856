package motion

import "fmt"

// UninitializedTrackError reports a track with no valid measurement at
// any frame, leaving the filter nothing to initialise from. TrackID is
// empty when the filter is invoked without track context; callers that
// know the id wrap the error with it.
type UninitializedTrackError struct {
	TrackID string
}

func (e *UninitializedTrackError) Error() string {
	if e.TrackID == "" {
		return "motion: track has no valid measurement to initialise from"
	}
	return fmt.Sprintf("motion: track %s has no valid measurement to initialise from", e.TrackID)
}

// NumericalInstabilityError reports a singular or non-finite covariance
// encountered at a specific frame offset during filtering or smoothing.
type NumericalInstabilityError struct {
	Op    string // "filter" or "smooth"
	Frame int    // offset into the track's frame sequence
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("motion: numerical instability during %s at frame offset %d", e.Op, e.Frame)
}
