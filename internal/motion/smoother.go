package motion

import "gonum.org/v1/gonum/mat"

// Smooth refines forward-filter estimates with a Rauch-Tung-Striebel
// backward pass over the whole track. The final frame keeps its
// forward estimate; every earlier frame blends its forward estimate
// with the smoothed future through the gain C = P F' Pp^-1, where Pp
// is the one-step predicted covariance. Smoothing never widens
// uncertainty: each smoothed covariance trace is bounded by the
// forward one. The input estimates are not modified.
func (m *Model) Smooth(forward []Estimate) ([]Estimate, error) {
	smoothed := make([]Estimate, len(forward))
	for i, e := range forward {
		smoothed[i] = e.clone()
	}
	if len(forward) < 2 {
		return smoothed, nil
	}

	for k := len(forward) - 2; k >= 0; k-- {
		xp := mat.NewVecDense(stateDim, nil)
		xp.MulVec(m.f, forward[k].State)

		var fp mat.Dense
		fp.Mul(m.f, forward[k].Cov)
		var pp mat.Dense
		pp.Mul(&fp, m.f.T())
		pp.Add(&pp, m.q)

		ppInv, err := invert(&pp)
		if err != nil {
			return nil, &NumericalInstabilityError{Op: "smooth", Frame: k}
		}

		var pft mat.Dense
		pft.Mul(forward[k].Cov, m.f.T())
		var gain mat.Dense
		gain.Mul(&pft, ppInv)

		var dx mat.VecDense
		dx.SubVec(smoothed[k+1].State, xp)
		var corr mat.VecDense
		corr.MulVec(&gain, &dx)
		smoothed[k].State.AddVec(smoothed[k].State, &corr)

		var dp mat.Dense
		dp.Sub(smoothed[k+1].Cov, &pp)
		var gd mat.Dense
		gd.Mul(&gain, &dp)
		var gdg mat.Dense
		gdg.Mul(&gd, gain.T())
		smoothed[k].Cov.Add(smoothed[k].Cov, &gdg)

		if !finiteState(smoothed[k].State, smoothed[k].Cov) {
			return nil, &NumericalInstabilityError{Op: "smooth", Frame: k}
		}
	}
	return smoothed, nil
}
