package motion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
)

// Measurement is one frame's observation slot. Valid reports whether
// the frame carries a measurement at all; when it does, Points holds
// exactly one world point per sensor, in sensor order.
type Measurement struct {
	Valid  bool
	Points []geom.Point
}

// Observed builds a present measurement from one point per sensor.
func Observed(points ...geom.Point) Measurement {
	return Measurement{Valid: true, Points: points}
}

// Missing is the absent-measurement slot for a frame inside a gap.
func Missing() Measurement { return Measurement{} }

// Estimate is the filter's belief at one frame: the full state vector
// [x, vx, ax, y, vy, ay] and its covariance.
type Estimate struct {
	State *mat.VecDense
	Cov   *mat.Dense
}

// Kinematics is a flattened per-frame estimate: position, velocity and
// acceleration on both world axes, in world units and seconds.
type Kinematics struct {
	X  float64
	VX float64
	AX float64
	Y  float64
	VY float64
	AY float64
}

// Kinematics flattens the estimate's mean vector.
func (e Estimate) Kinematics() Kinematics {
	return Kinematics{
		X:  e.State.AtVec(0),
		VX: e.State.AtVec(1),
		AX: e.State.AtVec(2),
		Y:  e.State.AtVec(3),
		VY: e.State.AtVec(4),
		AY: e.State.AtVec(5),
	}
}

// Position returns the estimated world position.
func (e Estimate) Position() geom.Point {
	return geom.Point{X: e.State.AtVec(0), Y: e.State.AtVec(3)}
}

// Velocity returns the estimated velocity components in world units
// per second.
func (e Estimate) Velocity() (vx, vy float64) {
	return e.State.AtVec(1), e.State.AtVec(4)
}

// Acceleration returns the estimated acceleration components.
func (e Estimate) Acceleration() (ax, ay float64) {
	return e.State.AtVec(2), e.State.AtVec(5)
}

// PositionVariance returns the covariance diagonal entries of the two
// position components.
func (e Estimate) PositionVariance() (vx, vy float64) {
	return e.Cov.At(0, 0), e.Cov.At(3, 3)
}

// CovarianceTrace sums the covariance diagonal, the scalar uncertainty
// summary reported in run diagnostics.
func (e Estimate) CovarianceTrace() float64 {
	return mat.Trace(e.Cov)
}

func (e Estimate) clone() Estimate {
	return Estimate{State: mat.VecDenseCopyOf(e.State), Cov: mat.DenseCopyOf(e.Cov)}
}

// run is a maximal stretch of frames sharing the same presence state,
// half-open over [start, end).
type run struct {
	start, end int
	present    bool
}

func presenceRuns(ms []Measurement) []run {
	var runs []run
	for i := 0; i < len(ms); {
		j := i
		for j < len(ms) && ms[j].Valid == ms[i].Valid {
			j++
		}
		runs = append(runs, run{start: i, end: j, present: ms[i].Valid})
		i = j
	}
	return runs
}

// Filter runs the gap-aware forward pass over one track's frame
// sequence. The sequence is partitioned into maximal runs of present
// and missing frames; present frames take a predict-update step,
// missing frames a predict-only step. State carries across run
// boundaries unchanged, so a gap widens the covariance without
// restarting the track. The state is initialised at the track's first
// valid measurement with zero velocity and acceleration; any earlier
// missing frames are predicted from that state, so the output always
// holds exactly one posterior estimate per input frame.
func (m *Model) Filter(measurements []Measurement) ([]Estimate, error) {
	first := -1
	for i, ms := range measurements {
		if ms.Valid {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, &UninitializedTrackError{}
	}
	for i, ms := range measurements {
		if ms.Valid && len(ms.Points) != m.cfg.Sensors {
			return nil, fmt.Errorf("motion: frame offset %d has %d points, model expects %d",
				i, len(ms.Points), m.cfg.Sensors)
		}
	}

	x := m.initialState(measurements[first])
	p := mat.DenseCopyOf(m.p)

	estimates := make([]Estimate, 0, len(measurements))
	for _, r := range presenceRuns(measurements) {
		for i := r.start; i < r.end; i++ {
			x, p = m.predict(x, p)
			if r.present {
				var err error
				x, p, err = m.update(x, p, measurements[i])
				if err != nil {
					return nil, &NumericalInstabilityError{Op: "filter", Frame: i}
				}
			}
			if !finiteState(x, p) {
				return nil, &NumericalInstabilityError{Op: "filter", Frame: i}
			}
			estimates = append(estimates, Estimate{State: x, Cov: p}.clone())
		}
	}
	return estimates, nil
}

// initialState centres the position on the mean of the first valid
// frame's sensor points.
func (m *Model) initialState(ms Measurement) *mat.VecDense {
	var cx, cy float64
	for _, pt := range ms.Points {
		cx += pt.X
		cy += pt.Y
	}
	n := float64(len(ms.Points))
	x := mat.NewVecDense(stateDim, nil)
	x.SetVec(0, cx/n)
	x.SetVec(3, cy/n)
	return x
}

func (m *Model) predict(x *mat.VecDense, p *mat.Dense) (*mat.VecDense, *mat.Dense) {
	xp := mat.NewVecDense(stateDim, nil)
	xp.MulVec(m.f, x)

	var fp, pp mat.Dense
	fp.Mul(m.f, p)
	pp.Mul(&fp, m.f.T())
	pp.Add(&pp, m.q)
	return xp, &pp
}

func (m *Model) update(x *mat.VecDense, p *mat.Dense, ms Measurement) (*mat.VecDense, *mat.Dense, error) {
	z := mat.NewVecDense(2*m.cfg.Sensors, nil)
	for s, pt := range ms.Points {
		z.SetVec(2*s, pt.X)
		z.SetVec(2*s+1, pt.Y)
	}

	var hx mat.VecDense
	hx.MulVec(m.h, x)
	var innov mat.VecDense
	innov.SubVec(z, &hx)

	var hp mat.Dense
	hp.Mul(m.h, p)
	var s mat.Dense
	s.Mul(&hp, m.h.T())
	s.Add(&s, m.r)

	sInv, err := invert(&s)
	if err != nil {
		return nil, nil, err
	}

	var pht mat.Dense
	pht.Mul(p, m.h.T())
	var gain mat.Dense
	gain.Mul(&pht, sInv)

	var corr mat.VecDense
	corr.MulVec(&gain, &innov)
	xn := mat.NewVecDense(stateDim, nil)
	xn.AddVec(x, &corr)

	// Joseph form keeps the posterior covariance symmetric.
	var kh mat.Dense
	kh.Mul(&gain, m.h)
	ikh := scaledEye(stateDim, 1)
	ikh.Sub(ikh, &kh)

	var ip mat.Dense
	ip.Mul(ikh, p)
	var pn mat.Dense
	pn.Mul(&ip, ikh.T())

	var kr mat.Dense
	kr.Mul(&gain, m.r)
	var krk mat.Dense
	krk.Mul(&kr, gain.T())
	pn.Add(&pn, &krk)

	return xn, &pn, nil
}

// invert inverts a covariance matrix. Ill-conditioned matrices are
// accepted; only exact singularity is an error.
func invert(a *mat.Dense) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, err
		}
	}
	return &inv, nil
}

func finiteState(x *mat.VecDense, p *mat.Dense) bool {
	for i := 0; i < stateDim; i++ {
		if !isFinite(x.AtVec(i)) {
			return false
		}
		for j := 0; j < stateDim; j++ {
			if !isFinite(p.At(i, j)) {
				return false
			}
		}
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
