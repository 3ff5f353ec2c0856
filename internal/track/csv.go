package track

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/motion"
)

// maxFrameGap bounds the number of missing slots densification will
// insert between two detections, so a typo'd frame number cannot
// balloon a track into gigabytes.
const maxFrameGap = 100000

var trackHeader = []string{"track_id", "frame", "x", "y"}

var smoothedHeader = []string{
	"track_id", "frame",
	"raw_x", "raw_y",
	"x", "vx", "ax", "y", "vy", "ay",
	"fwd_x", "fwd_vx", "fwd_ax", "fwd_y", "fwd_vy", "fwd_ay",
}

// ReadTracks parses detector output. The first record must be the
// header track_id,frame,x,y. Rows of one track must arrive in
// strictly increasing frame order; frames between two detections that
// have no row, and rows whose x and y are both empty (or NaN, as
// spreadsheet exports write them), become missing slots. A row with
// only one coordinate present is rejected, not guessed at.
//
// Tracks are returned in order of first appearance.
func ReadTracks(r io.Reader) ([]Track, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("track csv: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("track csv: reading header: %w", err)
	}
	if err := checkTrackHeader(header); err != nil {
		return nil, err
	}

	builders := make(map[string]*trackBuilder)
	var order []string

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("track csv line %d: %w", line, err)
		}

		id := strings.TrimSpace(record[0])
		if id == "" {
			return nil, fmt.Errorf("track csv line %d: empty track id", line)
		}
		frame, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("track csv line %d: bad frame %q", line, record[1])
		}

		meas, err := parseMeasurement(record[2], record[3])
		if err != nil {
			return nil, fmt.Errorf("track csv line %d: %w", line, err)
		}

		b, ok := builders[id]
		if !ok {
			b = &trackBuilder{id: id, start: frame, next: frame}
			builders[id] = b
			order = append(order, id)
		}
		if err := b.add(frame, meas); err != nil {
			return nil, fmt.Errorf("track csv line %d: %w", line, err)
		}
	}

	tracks := make([]Track, 0, len(order))
	for _, id := range order {
		tracks = append(tracks, builders[id].build())
	}
	return tracks, nil
}

// parseMeasurement interprets one row's coordinate pair. Both fields
// empty or NaN means a missing frame.
func parseMeasurement(xs, ys string) (motion.Measurement, error) {
	xAbsent := coordAbsent(xs)
	yAbsent := coordAbsent(ys)
	if xAbsent != yAbsent {
		return motion.Measurement{}, fmt.Errorf("x and y must be both present or both empty, got %q and %q", xs, ys)
	}
	if xAbsent {
		return motion.Missing(), nil
	}

	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return motion.Measurement{}, fmt.Errorf("bad x %q", xs)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return motion.Measurement{}, fmt.Errorf("bad y %q", ys)
	}
	if math.IsInf(x, 0) || math.IsInf(y, 0) {
		return motion.Measurement{}, fmt.Errorf("non-finite position (%s, %s)", xs, ys)
	}
	return motion.Observed(geom.Point{X: x, Y: y}), nil
}

func coordAbsent(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "nan")
}

type trackBuilder struct {
	id           string
	start        int
	next         int // frame number the next row must not precede
	measurements []motion.Measurement
}

func (b *trackBuilder) add(frame int, m motion.Measurement) error {
	if frame < b.next {
		if frame == b.next-1 {
			return fmt.Errorf("track %s: duplicate frame %d", b.id, frame)
		}
		return fmt.Errorf("track %s: frame %d arrives out of order", b.id, frame)
	}
	if gap := frame - b.next; gap > maxFrameGap {
		return fmt.Errorf("track %s: frame %d jumps %d frames ahead", b.id, frame, gap)
	}
	for b.next < frame {
		b.measurements = append(b.measurements, motion.Missing())
		b.next++
	}
	b.measurements = append(b.measurements, m)
	b.next++
	return nil
}

func (b *trackBuilder) build() Track {
	return Track{ID: b.id, Start: b.start, Measurements: b.measurements}
}

func checkTrackHeader(got []string) error {
	if len(got) != len(trackHeader) {
		return fmt.Errorf("track csv: expected header %s, got %d columns",
			strings.Join(trackHeader, ","), len(got))
	}
	for i, want := range trackHeader {
		if strings.TrimSpace(strings.ToLower(got[i])) != want {
			return fmt.Errorf("track csv: expected header column %d to be %q, got %q", i+1, want, got[i])
		}
	}
	return nil
}

// WriteSmoothed emits the pipeline output CSV, one row per frame per
// track: the raw measurement (empty cells on frames without an
// observation), the smoothed state and the forward-pass state.
func WriteSmoothed(w io.Writer, tracks []SmoothedTrack) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(smoothedHeader); err != nil {
		return fmt.Errorf("smoothed csv: writing header: %w", err)
	}
	for _, tr := range tracks {
		for _, f := range tr.Frames {
			rawX, rawY := "", ""
			if f.Observed {
				rawX = formatFloat(f.Measured.X)
				rawY = formatFloat(f.Measured.Y)
			}
			record := []string{
				tr.ID,
				strconv.Itoa(f.Frame),
				rawX, rawY,
				formatFloat(f.Smoothed.X), formatFloat(f.Smoothed.VX), formatFloat(f.Smoothed.AX),
				formatFloat(f.Smoothed.Y), formatFloat(f.Smoothed.VY), formatFloat(f.Smoothed.AY),
				formatFloat(f.Forward.X), formatFloat(f.Forward.VX), formatFloat(f.Forward.AX),
				formatFloat(f.Forward.Y), formatFloat(f.Forward.VY), formatFloat(f.Forward.AY),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("smoothed csv: writing track %s frame %d: %w", tr.ID, f.Frame, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadSmoothed parses a CSV produced by WriteSmoothed back into
// SmoothedTracks, for tools that post-process pipeline output. Speed
// is recomputed from the smoothed velocity; position variance is not
// part of the CSV and comes back zero. Each track's rows must be
// dense and in increasing frame order, which is how the writer emits
// them.
func ReadSmoothed(r io.Reader) ([]SmoothedTrack, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("smoothed csv: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("smoothed csv: reading header: %w", err)
	}
	if err := checkSmoothedHeader(header); err != nil {
		return nil, err
	}

	byID := make(map[string]*SmoothedTrack)
	var order []string

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("smoothed csv line %d: %w", line, err)
		}

		id := strings.TrimSpace(record[0])
		if id == "" {
			return nil, fmt.Errorf("smoothed csv line %d: empty track id", line)
		}
		frame, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("smoothed csv line %d: bad frame %q", line, record[1])
		}

		f := SmoothedFrame{Frame: frame}
		meas, err := parseMeasurement(record[2], record[3])
		if err != nil {
			return nil, fmt.Errorf("smoothed csv line %d: %w", line, err)
		}
		if meas.Valid {
			f.Observed = true
			f.Measured = meas.Points[0]
		}

		states := make([]float64, 12)
		for i := range states {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[4+i]), 64)
			if err != nil {
				return nil, fmt.Errorf("smoothed csv line %d: bad %s %q", line, smoothedHeader[4+i], record[4+i])
			}
			states[i] = v
		}
		f.Smoothed = motion.Kinematics{X: states[0], VX: states[1], AX: states[2], Y: states[3], VY: states[4], AY: states[5]}
		f.Forward = motion.Kinematics{X: states[6], VX: states[7], AX: states[8], Y: states[9], VY: states[10], AY: states[11]}
		f.Speed = math.Hypot(f.Smoothed.VX, f.Smoothed.VY)

		tr, ok := byID[id]
		if !ok {
			tr = &SmoothedTrack{ID: id, Start: frame}
			byID[id] = tr
			order = append(order, id)
		} else if frame != tr.Start+len(tr.Frames) {
			return nil, fmt.Errorf("smoothed csv line %d: track %s expected frame %d, got %d",
				line, id, tr.Start+len(tr.Frames), frame)
		}
		tr.Frames = append(tr.Frames, f)
	}

	tracks := make([]SmoothedTrack, 0, len(order))
	for _, id := range order {
		tracks = append(tracks, *byID[id])
	}
	return tracks, nil
}

func checkSmoothedHeader(got []string) error {
	if len(got) != len(smoothedHeader) {
		return fmt.Errorf("smoothed csv: expected %d header columns, got %d", len(smoothedHeader), len(got))
	}
	for i, want := range smoothedHeader {
		if strings.TrimSpace(strings.ToLower(got[i])) != want {
			return fmt.Errorf("smoothed csv: expected header column %d to be %q, got %q", i+1, want, got[i])
		}
	}
	return nil
}
