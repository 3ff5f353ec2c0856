package geom

import "math"

// Point is a 2D coordinate. The same type carries pixel coordinates
// (origin top-left, units of pixels) and world coordinates (ground
// plane, units chosen at annotation time); the containing API makes
// clear which frame a value lives in.
type Point struct {
	X float64
	Y float64
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// similarity is a 2D similarity transform (uniform scale + translation)
// in row-major 3x3 form. Used for Hartley conditioning of point sets
// before DLT estimation.
type similarity struct {
	scale float64
	cx    float64
	cy    float64
}

func (t similarity) apply(p Point) Point {
	return Point{X: t.scale * (p.X - t.cx), Y: t.scale * (p.Y - t.cy)}
}

func (t similarity) matrix() [9]float64 {
	return [9]float64{
		t.scale, 0, -t.scale * t.cx,
		0, t.scale, -t.scale * t.cy,
		0, 0, 1,
	}
}

func (t similarity) inverseMatrix() [9]float64 {
	return [9]float64{
		1 / t.scale, 0, t.cx,
		0, 1 / t.scale, t.cy,
		0, 0, 1,
	}
}

// conditioning computes the similarity that moves the centroid of pts
// to the origin and scales the mean distance from it to sqrt(2). A
// point set with zero spread cannot be conditioned; ok is false then.
func conditioning(pts []Point) (similarity, bool) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}
	meanDist /= n
	if meanDist <= 0 {
		return similarity{}, false
	}
	return similarity{scale: math.Sqrt2 / meanDist, cx: cx, cy: cy}, true
}

// mul3 multiplies two row-major 3x3 matrices.
func mul3(a, b [9]float64) [9]float64 {
	var out [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[3*r+c] = a[3*r]*b[c] + a[3*r+1]*b[3+c] + a[3*r+2]*b[6+c]
		}
	}
	return out
}

// collinear reports whether the triangle (a,b,c) is degenerate: its
// doubled signed area is negligible relative to the edge lengths.
func collinear(a, b, c Point) bool {
	area := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	scale := a.Dist(b) * a.Dist(c)
	if scale == 0 {
		return true
	}
	return math.Abs(area) < 1e-10*scale
}

// anyCollinearTriple reports whether any three of the given points are
// (near-)collinear. Intended for minimal four-point samples; quadratic
// in len(pts).
func anyCollinearTriple(pts []Point) bool {
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				if collinear(pts[i], pts[j], pts[k]) {
					return true
				}
			}
		}
	}
	return false
}
