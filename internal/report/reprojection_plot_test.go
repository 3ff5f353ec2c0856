package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/mapper"
)

// unitSquareFixture maps the 100px square onto the unit square, with
// one correspondence flagged as an outlier.
func unitSquareFixture(t *testing.T) ([]mapper.Correspondence, *mapper.Mapper, *geom.FitReport) {
	t.Helper()

	h, err := geom.NewHomography([9]float64{0.01, 0, 0, 0, 0.01, 0, 0, 0, 1})
	require.NoError(t, err)
	m, err := mapper.New(nil, h)
	require.NoError(t, err)

	corrs := []mapper.Correspondence{
		{Name: "sw", World: geom.Point{X: 0, Y: 0}, Pixel: geom.Point{X: 0, Y: 0}},
		{Name: "se", World: geom.Point{X: 1, Y: 0}, Pixel: geom.Point{X: 100, Y: 0}},
		{Name: "ne", World: geom.Point{X: 1, Y: 1}, Pixel: geom.Point{X: 100, Y: 100}},
		{Name: "bad", World: geom.Point{X: 0, Y: 1}, Pixel: geom.Point{X: 14, Y: 88}},
	}
	rep := &geom.FitReport{
		PointErrors: []float64{0.0004, 0.0006, 0.0005, 0.18},
		MeanError:   0.045,
		MaxError:    0.18,
		Inliers:     []bool{true, true, true, false},
		InlierCount: 3,
	}
	return corrs, m, rep
}

func TestReprojectionPlot_RendersScatter(t *testing.T) {
	t.Parallel()

	corrs, m, rep := unitSquareFixture(t)
	p, err := ReprojectionPlot(corrs, m, rep)
	require.NoError(t, err)
	assert.Contains(t, p.Title.Text, "mean")

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p, 8*vg.Inch, 8*vg.Inch))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestReprojectionPlot_NilReport(t *testing.T) {
	t.Parallel()

	corrs, m, _ := unitSquareFixture(t)
	p, err := ReprojectionPlot(corrs, m, nil)
	require.NoError(t, err)
	assert.Equal(t, "Reprojection errors", p.Title.Text)
}

func TestReprojectionPlot_BadInputs(t *testing.T) {
	t.Parallel()

	corrs, m, rep := unitSquareFixture(t)

	_, err := ReprojectionPlot(nil, m, rep)
	assert.Error(t, err)

	_, err = ReprojectionPlot(corrs, nil, rep)
	assert.Error(t, err)
}
