package camera

import (
	"math"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
)

const (
	// Fixed-point iteration cap for the planar model. Convergence is
	// geometric for realistic distortion magnitudes.
	planarUndistortIterations = 100

	// Newton iteration cap and tolerance for inverting the fisheye
	// theta-polynomial.
	fisheyeUndistortIterations = 10
	fisheyeUndistortEps        = 1e-10
)

// Undistort maps one raw (distorted) pixel coordinate to its
// undistorted equivalent, reprojected through NewK when the calibration
// carries one so that results align with undistorted imagery.
func (c *CalibrationResult) Undistort(p geom.Point) geom.Point {
	fx, fy := c.K[0], c.K[4]
	cx, cy := c.K[2], c.K[5]

	// Normalised image coordinates of the distorted observation.
	xd := (p.X - cx) / fx
	yd := (p.Y - cy) / fy

	var xu, yu float64
	if c.Model == LensFisheye {
		xu, yu = c.undistortFisheye(xd, yd)
	} else {
		xu, yu = c.undistortPlanar(xd, yd)
	}

	proj := c.projectionMatrix()
	return geom.Point{
		X: proj[0]*xu + proj[2],
		Y: proj[4]*yu + proj[5],
	}
}

// UndistortAll maps a batch of pixel coordinates, preserving order and
// count.
func (c *CalibrationResult) UndistortAll(pts []geom.Point) []geom.Point {
	out := make([]geom.Point, len(pts))
	for i, p := range pts {
		out[i] = c.Undistort(p)
	}
	return out
}

// ProjectRay maps a normalised camera-frame ray (x = X/Z, y = Y/Z) to
// the distorted pixel it images at, through the lens model and K.
func (c *CalibrationResult) ProjectRay(x, y float64) geom.Point {
	xd, yd := c.distortNormalised(x, y)
	return geom.Point{X: c.K[0]*xd + c.K[2], Y: c.K[4]*yd + c.K[5]}
}

// Distort maps an undistorted pixel (in the NewK frame when present)
// back to the raw distorted pixel. Inverse of Undistort.
func (c *CalibrationResult) Distort(p geom.Point) geom.Point {
	proj := c.projectionMatrix()
	return c.ProjectRay((p.X-proj[2])/proj[0], (p.Y-proj[5])/proj[4])
}

// distortNormalised applies the forward lens model to normalised image
// coordinates.
func (c *CalibrationResult) distortNormalised(x, y float64) (float64, float64) {
	if c.Model == LensFisheye {
		r := math.Hypot(x, y)
		if r == 0 {
			return x, y
		}
		theta := math.Atan(r)
		t2 := theta * theta
		thetaD := theta * (1 + c.dist(0)*t2 + c.dist(1)*t2*t2 + c.dist(2)*t2*t2*t2 + c.dist(3)*t2*t2*t2*t2)
		scale := thetaD / r
		return x * scale, y * scale
	}

	k1, k2 := c.dist(0), c.dist(1)
	p1, p2 := c.dist(2), c.dist(3)
	k3 := c.dist(4)
	k4, k5, k6 := c.dist(5), c.dist(6), c.dist(7)

	r2 := x*x + y*y
	radial := (1 + ((k3*r2+k2)*r2+k1)*r2) / (1 + ((k6*r2+k5)*r2+k4)*r2)
	xd := x*radial + 2*p1*x*y + p2*(r2+2*x*x)
	yd := y*radial + p1*(r2+2*y*y) + 2*p2*x*y
	return xd, yd
}

// undistortPlanar inverts the rational radial + tangential model by
// fixed-point iteration on the undistorted estimate:
//
//	x <- (xd - tangentialX) * (1 + k4 r2 + k5 r4 + k6 r6) / (1 + k1 r2 + k2 r4 + k3 r6)
//
// with r2 evaluated at the current estimate.
func (c *CalibrationResult) undistortPlanar(xd, yd float64) (float64, float64) {
	k1, k2 := c.dist(0), c.dist(1)
	p1, p2 := c.dist(2), c.dist(3)
	k3 := c.dist(4)
	k4, k5, k6 := c.dist(5), c.dist(6), c.dist(7)

	x, y := xd, yd
	for i := 0; i < planarUndistortIterations; i++ {
		r2 := x*x + y*y
		icdist := (1 + ((k6*r2+k5)*r2+k4)*r2) / (1 + ((k3*r2+k2)*r2+k1)*r2)
		deltaX := 2*p1*x*y + p2*(r2+2*x*x)
		deltaY := p1*(r2+2*y*y) + 2*p2*x*y
		x = (xd - deltaX) * icdist
		y = (yd - deltaY) * icdist
	}
	return x, y
}

// undistortFisheye inverts the equidistant fisheye model. The observed
// radius is theta_d = theta * (1 + k1 th^2 + k2 th^4 + k3 th^6 + k4 th^8);
// Newton's method recovers theta, and tan(theta) rescales the ray back
// onto the image plane.
func (c *CalibrationResult) undistortFisheye(xd, yd float64) (float64, float64) {
	k1, k2, k3, k4 := c.dist(0), c.dist(1), c.dist(2), c.dist(3)

	thetaD := math.Hypot(xd, yd)
	if thetaD == 0 {
		return xd, yd
	}
	// The model is only valid inside the hemisphere.
	clamped := math.Min(math.Max(thetaD, -math.Pi/2), math.Pi/2)

	theta := clamped
	for i := 0; i < fisheyeUndistortIterations; i++ {
		t2 := theta * theta
		t4 := t2 * t2
		t6 := t4 * t2
		t8 := t4 * t4
		f := theta*(1+k1*t2+k2*t4+k3*t6+k4*t8) - clamped
		df := 1 + 3*k1*t2 + 5*k2*t4 + 7*k3*t6 + 9*k4*t8
		step := f / df
		theta -= step
		if math.Abs(step) < fisheyeUndistortEps {
			break
		}
	}

	scale := math.Tan(theta) / thetaD
	return xd * scale, yd * scale
}
