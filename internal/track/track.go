package track

import (
	"fmt"
	"math"
	"sort"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/motion"
)

// Track is one object's dense observation history. Measurements holds
// exactly one slot per frame starting at frame number Start; frames
// the detector lost are Missing slots, so index i always corresponds
// to frame Start+i.
type Track struct {
	ID           string
	Start        int
	Measurements []motion.Measurement
}

// Validate reports whether the track is well-formed enough to process.
func (t Track) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("track: empty track id")
	}
	if len(t.Measurements) == 0 {
		return fmt.Errorf("track %s: no frames", t.ID)
	}
	for i, m := range t.Measurements {
		if m.Valid && len(m.Points) == 0 {
			return fmt.Errorf("track %s: frame %d is marked observed but has no points", t.ID, t.Start+i)
		}
	}
	return nil
}

// End returns the frame number of the last slot.
func (t Track) End() int {
	return t.Start + len(t.Measurements) - 1
}

// Observation is a single per-frame detector reading for a named
// track, the unit both ingestion paths (CSV rows, API payloads)
// normalise to before grouping.
type Observation struct {
	Track string
	Frame int
	Meas  motion.Measurement
}

// Collect groups observations into dense tracks, preserving the order
// in which track ids first appear. Frames must arrive strictly
// increasing per track; interior gaps are filled with missing slots,
// same as the CSV reader.
func Collect(obs []Observation) ([]Track, error) {
	builders := make(map[string]*trackBuilder)
	var order []string

	for i, o := range obs {
		if o.Track == "" {
			return nil, fmt.Errorf("observation %d: empty track id", i)
		}
		b, ok := builders[o.Track]
		if !ok {
			b = &trackBuilder{id: o.Track, start: o.Frame, next: o.Frame}
			builders[o.Track] = b
			order = append(order, o.Track)
		}
		if err := b.add(o.Frame, o.Meas); err != nil {
			return nil, err
		}
	}

	tracks := make([]Track, 0, len(order))
	for _, id := range order {
		tracks = append(tracks, builders[id].build())
	}
	return tracks, nil
}

// SmoothedFrame is the pipeline output for a single frame of one
// track. Measured is the world-space observation the filter consumed
// (the sensor mean when several sensors report) and only meaningful
// when Observed is set. Forward holds the causal filter estimate,
// Smoothed the full-sequence RTS estimate; both carry position,
// velocity and acceleration per axis. Speed is the smoothed ground
// speed in world units per second, PosVarX/PosVarY the smoothed
// position variance.
type SmoothedFrame struct {
	Frame    int
	Observed bool
	Measured geom.Point
	Forward  motion.Kinematics
	Smoothed motion.Kinematics
	Speed    float64
	PosVarX  float64
	PosVarY  float64
}

// SmoothedTrack is one track's full pipeline output, frame-aligned
// with the input track.
type SmoothedTrack struct {
	ID     string
	Start  int
	Frames []SmoothedFrame
}

// End returns the frame number of the last output frame.
func (s SmoothedTrack) End() int {
	return s.Start + len(s.Frames) - 1
}

// ObservedCount reports how many frames carried a measurement.
func (s SmoothedTrack) ObservedCount() int {
	n := 0
	for _, f := range s.Frames {
		if f.Observed {
			n++
		}
	}
	return n
}

// SpeedStats summarises a track's smoothed speed profile, in world
// units per second.
type SpeedStats struct {
	Mean float64
	P95  float64
}

// SpeedStats computes the mean and 95th-percentile ground speed over
// the track's frames.
func (s SmoothedTrack) SpeedStats() SpeedStats {
	if len(s.Frames) == 0 {
		return SpeedStats{}
	}

	speeds := make([]float64, len(s.Frames))
	var sum float64
	for i, f := range s.Frames {
		speeds[i] = f.Speed
		sum += f.Speed
	}
	sort.Float64s(speeds)

	idx := int(math.Floor(float64(len(speeds)) * 0.95))
	if idx >= len(speeds) {
		idx = len(speeds) - 1
	}
	return SpeedStats{Mean: sum / float64(len(speeds)), P95: speeds[idx]}
}
