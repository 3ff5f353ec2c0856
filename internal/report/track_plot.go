package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sidewalk-data/trajectory.report/internal/security"
	"github.com/sidewalk-data/trajectory.report/internal/track"
)

// TrackPlot builds the per-track overlay: raw measurements as grey
// points, the causal forward estimate and the smoothed estimate as
// lines over them. Coordinates are world units on both axes.
func TrackPlot(st track.SmoothedTrack) (*plot.Plot, error) {
	if len(st.Frames) == 0 {
		return nil, fmt.Errorf("track %s has no frames", st.ID)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Track %s (frames %d..%d)", st.ID, st.Start, st.End())
	p.X.Label.Text = "World X"
	p.Y.Label.Text = "World Y"

	rawPts := make(plotter.XYs, 0, len(st.Frames))
	fwdPts := make(plotter.XYs, len(st.Frames))
	rtsPts := make(plotter.XYs, len(st.Frames))
	for i, f := range st.Frames {
		if f.Observed {
			rawPts = append(rawPts, plotter.XY{X: f.Measured.X, Y: f.Measured.Y})
		}
		fwdPts[i] = plotter.XY{X: f.Forward.X, Y: f.Forward.Y}
		rtsPts[i] = plotter.XY{X: f.Smoothed.X, Y: f.Smoothed.Y}
	}

	if len(rawPts) > 0 {
		raw, err := plotter.NewScatter(rawPts)
		if err != nil {
			return nil, err
		}
		raw.GlyphStyle.Color = rawColor
		raw.GlyphStyle.Radius = vg.Points(2)
		raw.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(raw)
		p.Legend.Add("raw", raw)
	}

	fwdLine, err := plotter.NewLine(fwdPts)
	if err != nil {
		return nil, err
	}
	fwdLine.Color = forwardColor
	fwdLine.Width = vg.Points(1)
	p.Add(fwdLine)
	p.Legend.Add("forward", fwdLine)

	rtsLine, err := plotter.NewLine(rtsPts)
	if err != nil {
		return nil, err
	}
	rtsLine.Color = smoothedColor
	rtsLine.Width = vg.Points(1.5)
	p.Add(rtsLine)
	p.Legend.Add("smoothed", rtsLine)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

// RunPlot overlays the smoothed paths of every track in a run on one
// canvas, one colour per track.
func RunPlot(tracks []track.SmoothedTrack) (*plot.Plot, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no tracks to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Smoothed tracks (%d)", len(tracks))
	p.X.Label.Text = "World X"
	p.Y.Label.Text = "World Y"

	colors := seriesColors(len(tracks))
	for i, st := range tracks {
		if len(st.Frames) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(st.Frames))
		for j, f := range st.Frames {
			pts[j] = plotter.XY{X: f.Smoothed.X, Y: f.Smoothed.Y}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("track %s: %w", st.ID, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(st.ID, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

// WritePNG renders the plot as PNG bytes onto w.
func WritePNG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SaveTrackPlots writes one overlay PNG per track plus a combined
// overview into dir, creating it if needed. Returns the number of plot
// files written.
func SaveTrackPlots(dir string, tracks []track.SmoothedTrack) (int, error) {
	if len(tracks) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	count := 0
	for _, st := range tracks {
		p, err := TrackPlot(st)
		if err != nil {
			return count, fmt.Errorf("track %s: %w", st.ID, err)
		}
		file := filepath.Join(dir, fmt.Sprintf("track_%s.png", security.SanitizeFilename(st.ID)))
		if err := p.Save(8*vg.Inch, 8*vg.Inch, file); err != nil {
			return count, fmt.Errorf("save track plot: %w", err)
		}
		count++
	}

	overview, err := RunPlot(tracks)
	if err != nil {
		return count, err
	}
	file := filepath.Join(dir, "run_overview.png")
	if err := overview.Save(8*vg.Inch, 8*vg.Inch, file); err != nil {
		return count, fmt.Errorf("save overview plot: %w", err)
	}
	return count + 1, nil
}
