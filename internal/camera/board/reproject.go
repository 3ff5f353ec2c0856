package board

import (
	"math"

	"gocv.io/x/gocv"

	"github.com/sidewalk-data/trajectory.report/internal/camera"
)

// perViewErrors computes the RMS reprojection error of each view by
// projecting the board lattice through that view's recovered pose and
// the fitted lens model. OpenCV's extended calibration outputs are not
// exposed through the binding, so the projection is done here.
//
// Returns nil when the pose mats do not have the expected one-row-per-
// view CV64F layout; per-view diagnostics are optional.
func perViewErrors(cal *camera.CalibrationResult, grid []gocv.Point3f, detections [][]gocv.Point2f, rvecs, tvecs gocv.Mat) []float64 {
	views := len(detections)
	if rvecs.Rows() != views || rvecs.Cols() != 3 || tvecs.Rows() != views || tvecs.Cols() != 3 {
		return nil
	}

	out := make([]float64, views)
	for v := 0; v < views; v++ {
		r := rodrigues(rvecs.GetDoubleAt(v, 0), rvecs.GetDoubleAt(v, 1), rvecs.GetDoubleAt(v, 2))
		tx, ty, tz := tvecs.GetDoubleAt(v, 0), tvecs.GetDoubleAt(v, 1), tvecs.GetDoubleAt(v, 2)

		var sum float64
		for i, p := range grid {
			gx, gy, gz := float64(p.X), float64(p.Y), float64(p.Z)
			cx := r[0]*gx + r[1]*gy + r[2]*gz + tx
			cy := r[3]*gx + r[4]*gy + r[5]*gz + ty
			cz := r[6]*gx + r[7]*gy + r[8]*gz + tz
			if cz == 0 {
				continue
			}
			projected := cal.ProjectRay(cx/cz, cy/cz)
			dx := projected.X - float64(detections[v][i].X)
			dy := projected.Y - float64(detections[v][i].Y)
			sum += dx*dx + dy*dy
		}
		out[v] = math.Sqrt(sum / float64(len(grid)))
	}
	return out
}

// rodrigues converts an axis-angle rotation vector to a row-major
// rotation matrix.
func rodrigues(rx, ry, rz float64) [9]float64 {
	theta := math.Sqrt(rx*rx + ry*ry + rz*rz)
	if theta < 1e-12 {
		return [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	}
	kx, ky, kz := rx/theta, ry/theta, rz/theta
	c, s := math.Cos(theta), math.Sin(theta)
	ic := 1 - c

	return [9]float64{
		c + kx*kx*ic, kx*ky*ic - kz*s, kx*kz*ic + ky*s,
		ky*kx*ic + kz*s, c + ky*ky*ic, ky*kz*ic - kx*s,
		kz*kx*ic - ky*s, kz*ky*ic + kx*s, c + kz*kz*ic,
	}
}
