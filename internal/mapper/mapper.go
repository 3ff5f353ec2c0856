package mapper

import (
	"fmt"

	"github.com/sidewalk-data/trajectory.report/internal/camera"
	"github.com/sidewalk-data/trajectory.report/internal/geom"
)

// Mapper maps pixel coordinates to ground-plane world coordinates.
// All fields are fixed at construction, so one Mapper may serve any
// number of concurrent callers.
type Mapper struct {
	cal *camera.CalibrationResult
	fwd geom.Homography
	inv geom.Homography
}

// New builds a mapper from an optional calibration and a fitted
// pixel-to-world homography. A nil calibration skips undistortion, for
// rigs whose lens distortion is negligible. The inverse homography is
// precomputed here so New fails fast on a non-invertible fit.
func New(cal *camera.CalibrationResult, h geom.Homography) (*Mapper, error) {
	inv, err := h.Inverse()
	if err != nil {
		return nil, fmt.Errorf("mapper: homography not invertible: %w", err)
	}
	return &Mapper{cal: cal, fwd: h, inv: inv}, nil
}

// Forward maps a raw pixel to world coordinates: lens undistortion
// first when a calibration is present, then the homography.
func (m *Mapper) Forward(pixel geom.Point) geom.Point {
	if m.cal != nil {
		pixel = m.cal.Undistort(pixel)
	}
	return m.fwd.Apply(pixel)
}

// ForwardAll maps pixels in order, returning one world point per
// input.
func (m *Mapper) ForwardAll(pixels []geom.Point) []geom.Point {
	out := make([]geom.Point, len(pixels))
	for i, p := range pixels {
		out[i] = m.Forward(p)
	}
	return out
}

// Inverse maps a world point back through the inverse homography only.
// The result is an undistorted pixel: no lens re-distortion is
// applied, so it is not a raw sensor coordinate. Callers needing the
// raw position must re-distort through the calibration themselves.
func (m *Mapper) Inverse(world geom.Point) geom.Point {
	return m.inv.Apply(world)
}

// InverseAll maps world points in order, returning one undistorted
// pixel per input.
func (m *Mapper) InverseAll(world []geom.Point) []geom.Point {
	out := make([]geom.Point, len(world))
	for i, w := range world {
		out[i] = m.Inverse(w)
	}
	return out
}

// Homography returns the fitted pixel-to-world transform.
func (m *Mapper) Homography() geom.Homography { return m.fwd }

// Calibration returns the lens calibration, or nil when the mapper was
// built without one.
func (m *Mapper) Calibration() *camera.CalibrationResult { return m.cal }

// Fit undistorts the correspondence pixels through cal (when non-nil),
// fits the pixel-to-world homography to them and returns the resulting
// mapper together with the fit report. The report's per-point errors
// are world-unit reprojection distances over every correspondence,
// inliers and outliers alike.
func Fit(cal *camera.CalibrationResult, corrs []Correspondence, cfg geom.FitConfig) (*Mapper, *geom.FitReport, error) {
	pixels := make([]geom.Point, len(corrs))
	world := make([]geom.Point, len(corrs))
	for i, c := range corrs {
		pixels[i] = c.Pixel
		if cal != nil {
			pixels[i] = cal.Undistort(c.Pixel)
		}
		world[i] = c.World
	}

	h, report, err := geom.FitHomography(pixels, world, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("mapper: fitting homography over %d correspondences: %w", len(corrs), err)
	}

	m, err := New(cal, h)
	if err != nil {
		return nil, nil, err
	}
	return m, report, nil
}
