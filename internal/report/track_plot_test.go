package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/motion"
	"github.com/sidewalk-data/trajectory.report/internal/track"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func lineSmoothedTrack(id string, start, frames int) track.SmoothedTrack {
	st := track.SmoothedTrack{ID: id, Start: start}
	for i := 0; i < frames; i++ {
		x := float64(i)
		f := track.SmoothedFrame{
			Frame:    start + i,
			Observed: i != 2, // one interior gap
			Smoothed: motion.Kinematics{X: x, VX: 1, Y: 0.5 * x, VY: 0.5},
			Forward:  motion.Kinematics{X: x + 0.02, VX: 0.98, Y: 0.5*x - 0.01, VY: 0.49},
			Speed:    1.1,
			PosVarX:  0.2,
			PosVarY:  0.2,
		}
		if f.Observed {
			f.Measured = geom.Point{X: x + 0.05, Y: 0.5*x + 0.04}
		}
		st.Frames = append(st.Frames, f)
	}
	return st
}

// ---------------------------------------------------------------------------
// TrackPlot
// ---------------------------------------------------------------------------

func TestTrackPlot_RendersOverlay(t *testing.T) {
	t.Parallel()

	st := lineSmoothedTrack("walker-3", 40, 6)
	p, err := TrackPlot(st)
	require.NoError(t, err)
	assert.Contains(t, p.Title.Text, "walker-3")
	assert.Contains(t, p.Title.Text, "40..45")

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p, 8*vg.Inch, 8*vg.Inch))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic), "output should be a PNG")
}

func TestTrackPlot_EmptyTrack(t *testing.T) {
	t.Parallel()

	_, err := TrackPlot(track.SmoothedTrack{ID: "empty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no frames")
}

// ---------------------------------------------------------------------------
// RunPlot
// ---------------------------------------------------------------------------

func TestRunPlot_OneLinePerTrack(t *testing.T) {
	t.Parallel()

	tracks := []track.SmoothedTrack{
		lineSmoothedTrack("a", 0, 5),
		lineSmoothedTrack("b", 10, 4),
		{ID: "hollow"}, // skipped, not fatal
	}
	p, err := RunPlot(tracks)
	require.NoError(t, err)
	assert.Contains(t, p.Title.Text, "3")

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p, 8*vg.Inch, 8*vg.Inch))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRunPlot_NoTracks(t *testing.T) {
	t.Parallel()

	_, err := RunPlot(nil)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// SaveTrackPlots
// ---------------------------------------------------------------------------

func TestSaveTrackPlots_WritesFilesAndOverview(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "plots")
	tracks := []track.SmoothedTrack{
		lineSmoothedTrack("a", 0, 5),
		lineSmoothedTrack("b/2", 0, 5), // slash must not escape the dir
	}

	count, err := SaveTrackPlots(dir, tracks)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	for _, name := range []string{"track_a.png", "track_b_2.png", "run_overview.png"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, "expected %s to exist", name)
		assert.True(t, bytes.HasPrefix(data, pngMagic), "%s should be a PNG", name)
	}
}

func TestSaveTrackPlots_NoTracksIsNoop(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "plots")
	count, err := SaveTrackPlots(dir, nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "no-op save should not create the dir")
}
