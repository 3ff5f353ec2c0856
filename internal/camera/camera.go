package camera

import (
	"fmt"
	"strings"
)

// LensModel selects the projection equations used during calibration
// and undistortion.
type LensModel string

const (
	LensPlanar  LensModel = "planar"
	LensFisheye LensModel = "fisheye"
)

// ParseLensModel converts a user-supplied string to a LensModel.
func ParseLensModel(s string) (LensModel, error) {
	switch LensModel(strings.ToLower(strings.TrimSpace(s))) {
	case LensPlanar:
		return LensPlanar, nil
	case LensFisheye:
		return LensFisheye, nil
	}
	return "", fmt.Errorf("unknown lens model %q (want planar or fisheye)", s)
}

// MinCalibrationImages is the minimum number of images with a
// successful checkerboard detection required to attempt a calibration
// solve. Below three views the optimisation is badly conditioned and
// quietly produces garbage intrinsics, so we refuse instead.
const MinCalibrationImages = 3

// CalibrationError reports a failed intrinsic calibration: too few
// usable detections or a solver failure. FailedImages lists the inputs
// whose checkerboard detection did not succeed, for operator diagnosis.
type CalibrationError struct {
	Reason       string
	FailedImages []string
}

func (e *CalibrationError) Error() string {
	if len(e.FailedImages) == 0 {
		return fmt.Sprintf("calibration failed: %s", e.Reason)
	}
	return fmt.Sprintf("calibration failed: %s (undetected: %s)", e.Reason, strings.Join(e.FailedImages, ", "))
}

// CalibrationResult holds a camera's estimated intrinsics. Immutable
// once computed; safe to share across goroutines.
//
// K and NewK are row-major 3x3 intrinsic matrices. Dist holds the
// distortion coefficients in OpenCV order: planar models use
// (k1, k2, p1, p2, k3[, k4, k5, k6]), fisheye models use (k1..k4).
// NewK, when present, is the refined matrix undistorted imagery is
// rendered through: the optimal new camera matrix for planar lenses,
// or the balance-adjusted estimate for fisheye lenses.
type CalibrationResult struct {
	Model       LensModel
	K           [9]float64
	Dist        []float64
	NewK        [9]float64
	HasNewK     bool
	ImageWidth  int
	ImageHeight int

	// ValidROI is the (x, y, width, height) pixel region guaranteed
	// free of interpolation artefacts after planar undistortion. Zero
	// for fisheye calibrations.
	ValidROI [4]int

	// Solver diagnostics: overall RMS reprojection error, the per-view
	// RMS for each used image, and which images those were.
	RMS        float64
	PerViewRMS []float64
	ImagesUsed []string
}

// dist returns the i-th distortion coefficient, treating absent
// higher-order terms as zero.
func (c *CalibrationResult) dist(i int) float64 {
	if i < len(c.Dist) {
		return c.Dist[i]
	}
	return 0
}

// projectionMatrix returns the matrix undistorted points are projected
// through: NewK when the calibration produced one, otherwise K.
func (c *CalibrationResult) projectionMatrix() [9]float64 {
	if c.HasNewK {
		return c.NewK
	}
	return c.K
}
