package geom

import (
	"github.com/maorshutman/lm"
)

// refineLM polishes a fitted homography by minimising reprojection
// residuals over the consensus set with Levenberg-Marquardt and a
// numerical Jacobian. Refinement failure is not fatal; the caller keeps
// the unrefined estimate, reported via the second return value.
func refineLM(h Homography, src, dst []Point) (Homography, bool) {
	n := len(src)
	resid := func(out, params []float64) {
		for i := 0; i < n; i++ {
			p := src[i]
			w := params[6]*p.X + params[7]*p.Y + params[8]
			if w == 0 {
				// Push the optimiser away from the plane at infinity.
				out[2*i] = 1e12
				out[2*i+1] = 1e12
				continue
			}
			out[2*i] = (params[0]*p.X+params[1]*p.Y+params[2])/w - dst[i].X
			out[2*i+1] = (params[3]*p.X+params[4]*p.Y+params[5])/w - dst[i].Y
		}
	}

	init := make([]float64, 9)
	coeffs := h.Coeffs()
	copy(init, coeffs[:])

	jac := lm.NumJac{Func: resid}
	prob := lm.LMProblem{
		Dim:        9,
		Size:       2 * n,
		Func:       resid,
		Jac:        jac.Jac,
		InitParams: init,
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}
	results, err := lm.LM(prob, &lm.Settings{Iterations: 100, ObjectiveTol: 1e-16})
	if err != nil || len(results.X) != 9 {
		return h, false
	}

	var refined [9]float64
	copy(refined[:], results.X)
	out, err := NewHomography(refined)
	if err != nil {
		return h, false
	}
	return out, true
}
