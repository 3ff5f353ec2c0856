package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/mapper"
)

// ReprojectionPlot draws fit quality in world coordinates: surveyed
// control points (outliers in red), the mapper's prediction for each
// as a cross, and a residual segment joining every pair. A nil report
// draws all points as inliers.
func ReprojectionPlot(corrs []mapper.Correspondence, m *mapper.Mapper, rep *geom.FitReport) (*plot.Plot, error) {
	if len(corrs) == 0 {
		return nil, fmt.Errorf("no correspondences to plot")
	}
	if m == nil {
		return nil, fmt.Errorf("nil mapper")
	}

	p := plot.New()
	if rep != nil {
		p.Title.Text = fmt.Sprintf("Reprojection errors (mean %.4g, max %.4g)", rep.MeanError, rep.MaxError)
	} else {
		p.Title.Text = "Reprojection errors"
	}
	p.X.Label.Text = "World X"
	p.Y.Label.Text = "World Y"

	var inlierPts, outlierPts, mappedPts plotter.XYs
	for i, c := range corrs {
		mapped := m.Forward(c.Pixel)
		mappedPts = append(mappedPts, plotter.XY{X: mapped.X, Y: mapped.Y})

		surveyed := plotter.XY{X: c.World.X, Y: c.World.Y}
		if rep != nil && i < len(rep.Inliers) && !rep.Inliers[i] {
			outlierPts = append(outlierPts, surveyed)
		} else {
			inlierPts = append(inlierPts, surveyed)
		}

		seg, err := plotter.NewLine(plotter.XYs{surveyed, {X: mapped.X, Y: mapped.Y}})
		if err != nil {
			return nil, err
		}
		seg.Color = rawColor
		seg.Width = vg.Points(0.5)
		p.Add(seg)
	}

	if len(inlierPts) > 0 {
		in, err := plotter.NewScatter(inlierPts)
		if err != nil {
			return nil, err
		}
		in.GlyphStyle.Color = inlierColor
		in.GlyphStyle.Radius = vg.Points(3)
		in.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(in)
		p.Legend.Add("surveyed", in)
	}
	if len(outlierPts) > 0 {
		out, err := plotter.NewScatter(outlierPts)
		if err != nil {
			return nil, err
		}
		out.GlyphStyle.Color = outlierColor
		out.GlyphStyle.Radius = vg.Points(3)
		out.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(out)
		p.Legend.Add("outlier", out)
	}

	mapped, err := plotter.NewScatter(mappedPts)
	if err != nil {
		return nil, err
	}
	mapped.GlyphStyle.Color = rawColor
	mapped.GlyphStyle.Radius = vg.Points(3)
	mapped.GlyphStyle.Shape = draw.CrossGlyph{}
	p.Add(mapped)
	p.Legend.Add("mapped", mapped)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}
