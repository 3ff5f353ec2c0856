package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DegenerateHomographyError reports a homography fit that produced (or
// would produce) a non-invertible transform: too few correspondences, a
// (near-)collinear point configuration, or a singular fitted matrix.
type DegenerateHomographyError struct {
	Reason string
}

func (e *DegenerateHomographyError) Error() string {
	return fmt.Sprintf("degenerate homography: %s", e.Reason)
}

// Ratio of the second-smallest to largest singular value of the DLT
// design matrix below which the correspondence configuration is treated
// as collinear. Near-collinear layouts collapse this ratio many orders
// of magnitude below well-spread ones.
const degenerateSingularRatio = 1e-8

// Homography is a 3x3 projective transform in row-major order, mapping
// homogeneous source-plane coordinates to destination-plane
// coordinates. In this pipeline the source plane is undistorted pixel
// space and the destination is the ground plane.
//
// The zero value is not a valid transform; obtain one from
// FitHomography or NewHomography. Values are immutable and safe to
// share across goroutines.
type Homography struct {
	m [9]float64
}

// NewHomography builds a Homography from row-major coefficients,
// rescaled to unit Frobenius norm. It fails if the matrix is singular.
func NewHomography(coeffs [9]float64) (Homography, error) {
	h := Homography{m: coeffs}
	h.normaliseScale()
	if math.Abs(h.det()) < 1e-12 {
		return Homography{}, &DegenerateHomographyError{Reason: "matrix is singular"}
	}
	return h, nil
}

// Coeffs returns the row-major coefficients.
func (h Homography) Coeffs() [9]float64 { return h.m }

// At returns the coefficient at row r, column c.
func (h Homography) At(r, c int) float64 { return h.m[3*r+c] }

// Apply maps a single point through the transform, performing the
// perspective divide.
func (h Homography) Apply(p Point) Point {
	w := h.m[6]*p.X + h.m[7]*p.Y + h.m[8]
	return Point{
		X: (h.m[0]*p.X + h.m[1]*p.Y + h.m[2]) / w,
		Y: (h.m[3]*p.X + h.m[4]*p.Y + h.m[5]) / w,
	}
}

// det returns the determinant of the 3x3 matrix.
func (h Homography) det() float64 {
	m := h.m
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Inverse returns the inverse transform via the adjugate. Fails with
// DegenerateHomographyError when the matrix is numerically singular,
// which a fitted homography never is (FitHomography rejects those), but
// deserialised or hand-built values may be.
func (h Homography) Inverse() (Homography, error) {
	d := h.det()
	if math.Abs(d) < 1e-12 {
		return Homography{}, &DegenerateHomographyError{Reason: "matrix is singular"}
	}
	m := h.m
	inv := [9]float64{
		(m[4]*m[8] - m[5]*m[7]) / d, (m[2]*m[7] - m[1]*m[8]) / d, (m[1]*m[5] - m[2]*m[4]) / d,
		(m[5]*m[6] - m[3]*m[8]) / d, (m[0]*m[8] - m[2]*m[6]) / d, (m[2]*m[3] - m[0]*m[5]) / d,
		(m[3]*m[7] - m[4]*m[6]) / d, (m[1]*m[6] - m[0]*m[7]) / d, (m[0]*m[4] - m[1]*m[3]) / d,
	}
	out := Homography{m: inv}
	out.normaliseScale()
	return out, nil
}

// normaliseScale rescales the coefficients to unit Frobenius norm with
// a non-negative bottom-right entry, removing projective scale freedom
// so that serialised transforms compare stably.
func (h *Homography) normaliseScale() {
	var norm float64
	for _, v := range h.m {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	if h.m[8] < 0 {
		norm = -norm
	}
	for i := range h.m {
		h.m[i] /= norm
	}
}

// fitDirect estimates a homography from all given correspondences with
// the normalised DLT: condition both point sets, solve for the null
// space of the 2Nx9 design matrix by SVD, then undo the conditioning.
//
// Each correspondence contributes the two classic rows
//
//	[-X -Y -1  0  0  0  xX xY x]
//	[ 0  0  0 -X -Y -1  yX yY y]
//
// where (X,Y) is the source point and (x,y) the destination.
func fitDirect(src, dst []Point) (Homography, error) {
	n := len(src)
	if n < 4 || len(dst) != n {
		return Homography{}, &DegenerateHomographyError{
			Reason: fmt.Sprintf("need at least 4 correspondence pairs, got %d", n),
		}
	}

	tSrc, okSrc := conditioning(src)
	tDst, okDst := conditioning(dst)
	if !okSrc || !okDst {
		return Homography{}, &DegenerateHomographyError{Reason: "correspondence points are coincident"}
	}

	data := make([]float64, 0, 18*n)
	for i := 0; i < n; i++ {
		s := tSrc.apply(src[i])
		d := tDst.apply(dst[i])
		data = append(data,
			-s.X, -s.Y, -1, 0, 0, 0, d.X*s.X, d.X*s.Y, d.X,
			0, 0, 0, -s.X, -s.Y, -1, d.Y*s.X, d.Y*s.Y, d.Y,
		)
	}
	a := mat.NewDense(2*n, 9, data)

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return Homography{}, &DegenerateHomographyError{Reason: "SVD of design matrix failed"}
	}
	sigma := svd.Values(nil)
	// With the implicit trailing zero for the 8x9 minimal case, index 7
	// is always the second-smallest singular value. Rank below 8 means
	// the solution space has dimension above one: a degenerate layout.
	if sigma[7] < degenerateSingularRatio*sigma[0] {
		return Homography{}, &DegenerateHomographyError{Reason: "correspondence points are collinear or near-collinear"}
	}

	var v mat.Dense
	svd.VTo(&v)
	_, cols := v.Dims()
	null := v.ColView(cols - 1)

	var hn [9]float64
	for i := 0; i < 9; i++ {
		hn[i] = null.AtVec(i)
	}

	// Undo conditioning: H = Tdst^-1 * Hn * Tsrc.
	m := mul3(mul3(tDst.inverseMatrix(), hn), tSrc.matrix())
	return NewHomography(m)
}
