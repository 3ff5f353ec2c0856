package track

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/motion"
)

func TestReadTracksDensifies(t *testing.T) {
	const csvText = `track_id,frame,x,y
ped_7,3,1.5,2.5
ped_7,4,1.6,2.4
ped_7,7,1.9,2.1
cyc_2,10,,
cyc_2,11,8.0,9.0
cyc_2,12,NaN,nan
cyc_2,13,8.2,9.2
`
	tracks, err := ReadTracks(strings.NewReader(csvText))
	if err != nil {
		t.Fatalf("ReadTracks: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}

	ped := tracks[0]
	if ped.ID != "ped_7" || ped.Start != 3 || ped.End() != 7 {
		t.Fatalf("unexpected first track %s spanning %d..%d", ped.ID, ped.Start, ped.End())
	}
	if len(ped.Measurements) != 5 {
		t.Fatalf("expected 5 dense slots, got %d", len(ped.Measurements))
	}
	// Frames 5 and 6 had no rows.
	for _, i := range []int{2, 3} {
		if ped.Measurements[i].Valid {
			t.Errorf("expected slot %d to be missing", i)
		}
	}
	if got := ped.Measurements[4].Points[0]; got != (geom.Point{X: 1.9, Y: 2.1}) {
		t.Errorf("expected last detection at (1.9, 2.1), got %+v", got)
	}

	cyc := tracks[1]
	if cyc.ID != "cyc_2" || cyc.Start != 10 {
		t.Fatalf("unexpected second track %s starting at %d", cyc.ID, cyc.Start)
	}
	wantValid := []bool{false, true, false, true}
	for i, want := range wantValid {
		if cyc.Measurements[i].Valid != want {
			t.Errorf("slot %d: expected valid=%v", i, want)
		}
	}
}

func TestReadTracksErrors(t *testing.T) {
	cases := []struct {
		name    string
		csvText string
		wantIn  string
	}{
		{"empty file", "", "empty file"},
		{"bad header", "id,frame,x,y\n", "expected header"},
		{"bad frame", "track_id,frame,x,y\na,one,1,2\n", "bad frame"},
		{"half missing", "track_id,frame,x,y\na,1,3.5,\n", "both present or both empty"},
		{"duplicate frame", "track_id,frame,x,y\na,1,1,2\na,1,1,2\n", "duplicate frame"},
		{"out of order", "track_id,frame,x,y\na,5,1,2\na,3,1,2\n", "out of order"},
		{"empty id", "track_id,frame,x,y\n,1,2,3\n", "empty track id"},
		{"absurd gap", "track_id,frame,x,y\na,1,1,2\na,500002,1,2\n", "jumps"},
		{"infinite position", "track_id,frame,x,y\na,1,Inf,2\n", "non-finite"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadTracks(strings.NewReader(tc.csvText))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantIn) {
				t.Errorf("expected error mentioning %q, got %q", tc.wantIn, err)
			}
		})
	}
}

func TestReadTracksInterleaved(t *testing.T) {
	const csvText = `track_id,frame,x,y
a,1,0,0
b,1,5,5
a,2,1,0
b,2,6,5
`
	tracks, err := ReadTracks(strings.NewReader(csvText))
	if err != nil {
		t.Fatalf("ReadTracks: %v", err)
	}
	if len(tracks) != 2 || tracks[0].ID != "a" || tracks[1].ID != "b" {
		t.Fatalf("expected tracks a then b, got %+v", tracks)
	}
	if len(tracks[0].Measurements) != 2 || len(tracks[1].Measurements) != 2 {
		t.Error("expected both interleaved tracks to keep both frames")
	}
}

func TestWriteSmoothed(t *testing.T) {
	tracks := []SmoothedTrack{{
		ID:    "ped_7",
		Start: 3,
		Frames: []SmoothedFrame{
			{
				Frame: 3, Observed: true,
				Measured: geom.Point{X: 1.5, Y: 2.5},
				Forward:  motion.Kinematics{X: 1.49, VX: 0.48, AX: 0.01, Y: 2.51, VY: -0.24, AY: -0.01},
				Smoothed: motion.Kinematics{X: 1.5, VX: 0.5, AX: 0.02, Y: 2.5, VY: -0.25, AY: -0.02},
				Speed:    0.559, PosVarX: 0.9, PosVarY: 0.8,
			},
			{
				Frame: 4, Observed: false,
				Forward:  motion.Kinematics{X: 1.51, VX: 0.48, Y: 2.49, VY: -0.24},
				Smoothed: motion.Kinematics{X: 1.52, VX: 0.5, Y: 2.48, VY: -0.25},
				Speed:    0.559, PosVarX: 1.4, PosVarY: 1.3,
			},
		},
	}}

	var buf bytes.Buffer
	if err := WriteSmoothed(&buf, tracks); err != nil {
		t.Fatalf("WriteSmoothed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != strings.Join(smoothedHeader, ",") {
		t.Errorf("unexpected header %q", lines[0])
	}

	first := strings.Split(lines[1], ",")
	if first[0] != "ped_7" || first[1] != "3" {
		t.Errorf("unexpected first row prefix %v", first[:2])
	}
	if first[2] != "1.5" || first[3] != "2.5" {
		t.Errorf("expected raw coordinates 1.5,2.5, got %v,%v", first[2], first[3])
	}
	// Smoothed state then forward state, position/velocity/acceleration per axis
	if first[4] != "1.5" || first[5] != "0.5" || first[6] != "0.02" {
		t.Errorf("unexpected smoothed x columns %v", first[4:7])
	}
	if first[10] != "1.49" || first[11] != "0.48" {
		t.Errorf("unexpected forward x columns %v", first[10:12])
	}

	second := strings.Split(lines[2], ",")
	if second[2] != "" || second[3] != "" {
		t.Errorf("expected empty raw coordinates on a missing frame, got %v,%v", second[2], second[3])
	}
	if second[4] != "1.52" {
		t.Errorf("expected smoothed x 1.52 on the gap frame, got %v", second[4])
	}
}

func TestReadSmoothedRoundTrip(t *testing.T) {
	tracks := []SmoothedTrack{{
		ID:    "ped_7",
		Start: 3,
		Frames: []SmoothedFrame{
			{
				Frame: 3, Observed: true,
				Measured: geom.Point{X: 1.5, Y: 2.5},
				Forward:  motion.Kinematics{X: 1.49, VX: 0.48, AX: 0.01, Y: 2.51, VY: -0.24, AY: -0.01},
				Smoothed: motion.Kinematics{X: 1.5, VX: 0.3, AX: 0.02, Y: 2.5, VY: -0.4, AY: -0.02},
			},
			{
				Frame: 4, Observed: false,
				Forward:  motion.Kinematics{X: 1.51, VX: 0.48, Y: 2.49, VY: -0.24},
				Smoothed: motion.Kinematics{X: 1.52, VX: 0.5, Y: 2.48, VY: -0.25},
			},
		},
	}}

	var buf bytes.Buffer
	if err := WriteSmoothed(&buf, tracks); err != nil {
		t.Fatalf("WriteSmoothed: %v", err)
	}
	got, err := ReadSmoothed(&buf)
	if err != nil {
		t.Fatalf("ReadSmoothed: %v", err)
	}

	if len(got) != 1 || got[0].ID != "ped_7" || got[0].Start != 3 {
		t.Fatalf("unexpected tracks %+v", got)
	}
	frames := got[0].Frames
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !frames[0].Observed || frames[0].Measured != (geom.Point{X: 1.5, Y: 2.5}) {
		t.Errorf("unexpected first frame measurement %+v", frames[0])
	}
	if frames[1].Observed {
		t.Error("expected second frame unobserved")
	}
	if frames[0].Smoothed != tracks[0].Frames[0].Smoothed {
		t.Errorf("smoothed state did not round-trip: %+v", frames[0].Smoothed)
	}
	if frames[1].Forward != tracks[0].Frames[1].Forward {
		t.Errorf("forward state did not round-trip: %+v", frames[1].Forward)
	}
	// Speed is recomputed from smoothed velocity, 0.3-0.4-0.5 triangle.
	if math.Abs(frames[0].Speed-0.5) > 1e-12 {
		t.Errorf("expected recomputed speed 0.5, got %v", frames[0].Speed)
	}
}

func TestReadSmoothedErrors(t *testing.T) {
	header := strings.Join(smoothedHeader, ",")
	cases := []struct {
		name    string
		csvText string
		wantIn  string
	}{
		{"empty file", "", "empty file"},
		{"bad header", "track_id,frame\n", "header columns"},
		{"bad state", header + "\na,1,,,x,0,0,0,0,0,0,0,0,0,0,0\n", "bad x"},
		{"frame hole", header + "\na,1,,,0,0,0,0,0,0,0,0,0,0,0,0\na,3,,,0,0,0,0,0,0,0,0,0,0,0,0\n", "expected frame 2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadSmoothed(strings.NewReader(tc.csvText))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantIn) {
				t.Errorf("expected error mentioning %q, got %q", tc.wantIn, err)
			}
		})
	}
}
