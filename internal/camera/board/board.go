package board

import (
	"fmt"
	"image"
	"log"

	"gocv.io/x/gocv"

	"github.com/sidewalk-data/trajectory.report/internal/camera"
)

// Sub-pixel corner refinement termination: matches the reference
// tooling this pipeline's calibrations were collected with.
const (
	subPixIterations = 30
	subPixEpsilon    = 0.001
)

// Config describes the calibration target and lens model.
type Config struct {
	PatternCols    int     // inner corners along the board's long edge
	PatternRows    int     // inner corners along the short edge
	Model          camera.LensModel
	FisheyeBalance float64 // 0 crops to valid pixels, 1 keeps the full field
}

// DefaultConfig matches the survey-standard 9x6 target, planar lens,
// full field of view.
func DefaultConfig() Config {
	return Config{
		PatternCols:    9,
		PatternRows:    6,
		Model:          camera.LensPlanar,
		FisheyeBalance: 1.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PatternCols <= 0 {
		c.PatternCols = d.PatternCols
	}
	if c.PatternRows <= 0 {
		c.PatternRows = d.PatternRows
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.FisheyeBalance < 0 || c.FisheyeBalance > 1 {
		c.FisheyeBalance = d.FisheyeBalance
	}
	return c
}

// CalibrateIntrinsics detects the checkerboard in every image and
// solves the calibration optimisation for the configured lens model.
// Images whose detection fails are logged and skipped; the solve
// proceeds when at least camera.MinCalibrationImages detections
// succeed, and fails with camera.CalibrationError otherwise.
func CalibrateIntrinsics(paths []string, cfg Config) (*camera.CalibrationResult, error) {
	cfg = cfg.withDefaults()
	pattern := image.Pt(cfg.PatternCols, cfg.PatternRows)

	var (
		detections [][]gocv.Point2f
		used       []string
		failed     []string
		imgSize    image.Point
	)
	for _, path := range paths {
		corners, size, err := detectCorners(path, pattern)
		if err != nil {
			log.Printf("[Calibrator] skip %s: %v", path, err)
			failed = append(failed, path)
			continue
		}
		if imgSize != (image.Point{}) && size != imgSize {
			log.Printf("[Calibrator] skip %s: size %v differs from %v", path, size, imgSize)
			failed = append(failed, path)
			continue
		}
		imgSize = size
		detections = append(detections, corners)
		used = append(used, path)
	}

	if len(detections) < camera.MinCalibrationImages {
		return nil, &camera.CalibrationError{
			Reason: fmt.Sprintf("only %d of %d images produced a checkerboard detection (need %d)",
				len(detections), len(paths), camera.MinCalibrationImages),
			FailedImages: failed,
		}
	}
	log.Printf("[Calibrator] detected %d/%d boards (%s model, %dx%d pattern)",
		len(detections), len(paths), cfg.Model, cfg.PatternCols, cfg.PatternRows)

	result, err := solve(cfg, imgSize, detections)
	if err != nil {
		return nil, err
	}
	result.ImagesUsed = used
	return result, nil
}

// detectCorners locates and sub-pixel refines the checkerboard corner
// grid in one image.
func detectCorners(path string, pattern image.Point) ([]gocv.Point2f, image.Point, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		return nil, image.Point{}, fmt.Errorf("unreadable image")
	}
	defer img.Close()

	corners := gocv.NewMat()
	defer corners.Close()
	found := gocv.FindChessboardCorners(img, pattern, &corners,
		gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage)
	if !found {
		return nil, image.Point{}, fmt.Errorf("checkerboard not found")
	}

	criteria := gocv.NewTermCriteria(gocv.MaxIter+gocv.EPS, subPixIterations, subPixEpsilon)
	gocv.CornerSubPix(img, &corners, image.Pt(11, 11), image.Pt(-1, -1), criteria)

	pts := make([]gocv.Point2f, 0, corners.Rows())
	for i := 0; i < corners.Rows(); i++ {
		v := corners.GetVecfAt(i, 0)
		pts = append(pts, gocv.Point2f{X: v[0], Y: v[1]})
	}
	if len(pts) != pattern.X*pattern.Y {
		return nil, image.Point{}, fmt.Errorf("found %d corners, want %d", len(pts), pattern.X*pattern.Y)
	}
	return pts, image.Pt(img.Cols(), img.Rows()), nil
}

// solve runs the OpenCV calibration for the configured lens model and
// converts the outputs to a CalibrationResult.
func solve(cfg Config, imgSize image.Point, detections [][]gocv.Point2f) (*camera.CalibrationResult, error) {
	grid := patternGrid(cfg.PatternCols, cfg.PatternRows)

	objPoints := gocv.NewPoints3fVector()
	defer objPoints.Close()
	imgPoints := gocv.NewPoints2fVector()
	defer imgPoints.Close()
	for _, det := range detections {
		objPoints.Append(gocv.NewPoint3fVectorFromPoints(grid))
		imgPoints.Append(gocv.NewPoint2fVectorFromPoints(det))
	}

	kMat := gocv.NewMat()
	defer kMat.Close()
	dMat := gocv.NewMat()
	defer dMat.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	result := &camera.CalibrationResult{
		Model:       cfg.Model,
		ImageWidth:  imgSize.X,
		ImageHeight: imgSize.Y,
	}

	if cfg.Model == camera.LensFisheye {
		result.RMS = gocv.FisheyeCalibrate(objPoints, imgPoints, imgSize, &kMat, &dMat, &rvecs, &tvecs,
			gocv.CalibRecomputeExtrinsic|gocv.CalibCheckCond|gocv.CalibFixSkew)
		result.K = readMat3(kMat)
		result.Dist = readVector(dMat)

		rIdent := gocv.Eye(3, 3, gocv.MatTypeCV64F)
		defer rIdent.Close()
		kNew := gocv.NewMat()
		defer kNew.Close()
		gocv.EstimateNewCameraMatrixForUndistortRectify(kMat, dMat, imgSize, rIdent, &kNew,
			cfg.FisheyeBalance, imgSize, 1.0)
		result.NewK = readMat3(kNew)
		result.HasNewK = true
	} else {
		result.RMS = gocv.CalibrateCamera(objPoints, imgPoints, imgSize, &kMat, &dMat, &rvecs, &tvecs, 0)
		result.K = readMat3(kMat)
		result.Dist = readVector(dMat)

		// Alpha 1 keeps every source pixel; the ROI records where the
		// undistorted image is artefact-free.
		kNew, roi := gocv.GetOptimalNewCameraMatrixWithParams(kMat, dMat, imgSize, 1.0, imgSize, false)
		defer kNew.Close()
		result.NewK = readMat3(kNew)
		result.HasNewK = true
		result.ValidROI = [4]int{roi.Min.X, roi.Min.Y, roi.Dx(), roi.Dy()}
	}

	if result.K[0] == 0 || result.K[4] == 0 {
		return nil, &camera.CalibrationError{Reason: "solver returned a degenerate intrinsic matrix"}
	}

	result.PerViewRMS = perViewErrors(result, grid, detections, rvecs, tvecs)
	return result, nil
}

// patternGrid builds the planar object points for one board view: a
// unit-square lattice at Z=0, row-major to match detection order. The
// physical square size only scales the extrinsics, which this pipeline
// discards, so intrinsics are unaffected.
func patternGrid(cols, rows int) []gocv.Point3f {
	grid := make([]gocv.Point3f, 0, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			grid = append(grid, gocv.Point3f{X: float32(c), Y: float32(r), Z: 0})
		}
	}
	return grid
}

// readMat3 copies a 3x3 CV64F matrix into a row-major array.
func readMat3(m gocv.Mat) [9]float64 {
	var out [9]float64
	if m.Rows() != 3 || m.Cols() != 3 {
		return out
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[3*r+c] = m.GetDoubleAt(r, c)
		}
	}
	return out
}

// readVector flattens a 1xN or Nx1 CV64F matrix.
func readVector(m gocv.Mat) []float64 {
	total := m.Rows() * m.Cols()
	out := make([]float64, 0, total)
	for i := 0; i < total; i++ {
		out = append(out, m.GetDoubleAt(i/m.Cols(), i%m.Cols()))
	}
	return out
}
