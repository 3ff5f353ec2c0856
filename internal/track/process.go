package track

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/mapper"
	"github.com/sidewalk-data/trajectory.report/internal/monitoring"
	"github.com/sidewalk-data/trajectory.report/internal/motion"
)

// defaultWorkers bounds batch parallelism when the caller does not.
const defaultWorkers = 4

// Processor runs the smoothing pipeline over batches of tracks. Model
// is required. Mapper is optional: when set, observations are treated
// as raw pixels and mapped to world coordinates before filtering;
// when nil, observations are already world-space. Workers limits the
// number of tracks processed concurrently.
type Processor struct {
	Model   *motion.Model
	Mapper  *mapper.Mapper
	Workers int
}

// Failure records one track the batch could not smooth.
type Failure struct {
	TrackID string
	Err     error
}

// Result is one batch's output. Smoothed preserves the input track
// order, minus the failed tracks listed in Failures.
type Result struct {
	Smoothed []SmoothedTrack
	Failures []Failure
}

// Run smooths every track in the batch. Tracks fail independently: a
// track that cannot be filtered becomes a Failure record while the
// rest of the batch proceeds. Cancelling ctx stops feeding new tracks
// to the pool; Run then returns the tracks finished so far alongside
// ctx's error.
func (p *Processor) Run(ctx context.Context, tracks []Track) (*Result, error) {
	if p.Model == nil {
		return nil, errors.New("track: processor requires a motion model")
	}

	workers := p.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(tracks) {
		workers = len(tracks)
	}

	smoothed := make([]*SmoothedTrack, len(tracks))
	failures := make([]error, len(tracks))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				st, err := p.processTrack(tracks[i])
				if err != nil {
					failures[i] = err
					continue
				}
				smoothed[i] = &st
			}
		}()
	}

feed:
	for i := range tracks {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	result := &Result{}
	for i := range tracks {
		switch {
		case smoothed[i] != nil:
			result.Smoothed = append(result.Smoothed, *smoothed[i])
		case failures[i] != nil:
			monitoring.Logf("[Smoother] track %s failed: %v", tracks[i].ID, failures[i])
			result.Failures = append(result.Failures, Failure{TrackID: tracks[i].ID, Err: failures[i]})
		}
	}
	monitoring.Logf("[Smoother] batch done: %d smoothed, %d failed of %d tracks",
		len(result.Smoothed), len(result.Failures), len(tracks))

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (p *Processor) processTrack(t Track) (SmoothedTrack, error) {
	if err := t.Validate(); err != nil {
		return SmoothedTrack{}, err
	}

	ms := t.Measurements
	if p.Mapper != nil {
		mapped := make([]motion.Measurement, len(ms))
		for i, m := range ms {
			if !m.Valid {
				mapped[i] = motion.Missing()
				continue
			}
			mapped[i] = motion.Observed(p.Mapper.ForwardAll(m.Points)...)
		}
		ms = mapped
	}

	forward, err := p.Model.Filter(ms)
	if err != nil {
		var uninit *motion.UninitializedTrackError
		if errors.As(err, &uninit) {
			return SmoothedTrack{}, &motion.UninitializedTrackError{TrackID: t.ID}
		}
		return SmoothedTrack{}, fmt.Errorf("filtering track %s: %w", t.ID, err)
	}
	rts, err := p.Model.Smooth(forward)
	if err != nil {
		return SmoothedTrack{}, fmt.Errorf("smoothing track %s: %w", t.ID, err)
	}

	frames := make([]SmoothedFrame, len(ms))
	for i := range ms {
		f := SmoothedFrame{
			Frame:    t.Start + i,
			Observed: ms[i].Valid,
			Forward:  forward[i].Kinematics(),
			Smoothed: rts[i].Kinematics(),
		}
		if ms[i].Valid {
			f.Measured = sensorMean(ms[i])
		}
		f.Speed = math.Hypot(f.Smoothed.VX, f.Smoothed.VY)
		f.PosVarX, f.PosVarY = rts[i].PositionVariance()
		frames[i] = f
	}
	return SmoothedTrack{ID: t.ID, Start: t.Start, Frames: frames}, nil
}

func sensorMean(m motion.Measurement) geom.Point {
	var mean geom.Point
	for _, pt := range m.Points {
		mean.X += pt.X
		mean.Y += pt.Y
	}
	n := float64(len(m.Points))
	mean.X /= n
	mean.Y /= n
	return mean
}
