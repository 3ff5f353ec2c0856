package geom

import (
	"fmt"
	"math"
	"math/rand"
)

// FitConfig tunes robust homography estimation.
type FitConfig struct {
	InlierThreshold float64 // max reprojection error, world units, for a pair to count as an inlier
	MaxIterations   int     // RANSAC iteration ceiling
	Confidence      float64 // target probability of sampling at least one outlier-free set
	Seed            int64   // RANSAC sampling seed; fits are deterministic for a fixed seed
}

// DefaultFitConfig returns the survey-fitting defaults. The 5
// world-unit inlier gate tolerates the occasional mis-clicked
// annotation without rejecting honest survey noise.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		InlierThreshold: 5.0,
		MaxIterations:   2000,
		Confidence:      0.995,
	}
}

func (c FitConfig) withDefaults() FitConfig {
	d := DefaultFitConfig()
	if c.InlierThreshold <= 0 {
		c.InlierThreshold = d.InlierThreshold
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		c.Confidence = d.Confidence
	}
	return c
}

// FitReport carries calibration-quality diagnostics for a fitted
// homography. Errors are L2 distances in world units between each
// forward-mapped pixel point and its recorded world point, over every
// input pair (outliers included, so a bad annotation is visible).
type FitReport struct {
	PointErrors []float64
	MeanError   float64
	MaxError    float64
	Inliers     []bool
	InlierCount int
	Iterations  int
	Refined     bool
}

// FitHomography fits the projective transform taking pixel points to
// world points. With exactly four pairs the fit is direct; with more,
// RANSAC over four-point minimal samples rejects outlier
// correspondences before a full refit on the consensus set and a final
// Levenberg-Marquardt polish.
//
// Fails with DegenerateHomographyError when fewer than four pairs are
// given, the configuration is (near-)collinear, or no consensus set of
// at least four inliers exists.
func FitHomography(pixels, world []Point, cfg FitConfig) (Homography, *FitReport, error) {
	if len(pixels) != len(world) {
		return Homography{}, nil, fmt.Errorf("fit homography: %d pixel points but %d world points", len(pixels), len(world))
	}
	n := len(pixels)
	if n < 4 {
		return Homography{}, nil, &DegenerateHomographyError{
			Reason: fmt.Sprintf("need at least 4 correspondence pairs, got %d", n),
		}
	}
	cfg = cfg.withDefaults()

	if n == 4 {
		h, err := fitDirect(pixels, world)
		if err != nil {
			return Homography{}, nil, err
		}
		return h, buildReport(h, pixels, world, cfg.InlierThreshold, 0, false), nil
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	var (
		bestInliers []int
		iterations  = cfg.MaxIterations
		performed   int
	)
	samplePx := make([]Point, 4)
	sampleWd := make([]Point, 4)

	for it := 0; it < iterations; it++ {
		performed = it + 1
		perm := rng.Perm(n)
		for i := 0; i < 4; i++ {
			samplePx[i] = pixels[perm[i]]
			sampleWd[i] = world[perm[i]]
		}
		if anyCollinearTriple(samplePx) {
			continue
		}
		h, err := fitDirect(samplePx, sampleWd)
		if err != nil {
			continue
		}

		var inliers []int
		for i := 0; i < n; i++ {
			if h.Apply(pixels[i]).Dist(world[i]) <= cfg.InlierThreshold {
				inliers = append(inliers, i)
			}
		}
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			if needed := adaptiveIterations(len(inliers), n, cfg.Confidence); needed < iterations {
				iterations = needed
			}
		}
		if len(bestInliers) == n {
			break
		}
	}

	if len(bestInliers) < 4 {
		return Homography{}, nil, &DegenerateHomographyError{
			Reason: fmt.Sprintf("no consensus: best sample explains %d of %d pairs", len(bestInliers), n),
		}
	}

	consensusPx := make([]Point, len(bestInliers))
	consensusWd := make([]Point, len(bestInliers))
	for i, idx := range bestInliers {
		consensusPx[i] = pixels[idx]
		consensusWd[i] = world[idx]
	}
	h, err := fitDirect(consensusPx, consensusWd)
	if err != nil {
		return Homography{}, nil, err
	}
	h, refined := refineLM(h, consensusPx, consensusWd)

	return h, buildReport(h, pixels, world, cfg.InlierThreshold, performed, refined), nil
}

// adaptiveIterations is the standard RANSAC stopping bound: enough
// samples that, with the observed inlier ratio, at least one
// all-inlier draw occurred with the requested confidence.
func adaptiveIterations(inliers, total int, confidence float64) int {
	w := float64(inliers) / float64(total)
	pAllInlier := math.Pow(w, 4)
	if pAllInlier >= 1 {
		return 1
	}
	needed := math.Log(1-confidence) / math.Log(1-pAllInlier)
	if math.IsNaN(needed) || math.IsInf(needed, 0) || needed < 1 {
		return 1
	}
	return int(math.Ceil(needed))
}

func buildReport(h Homography, pixels, world []Point, threshold float64, iterations int, refined bool) *FitReport {
	n := len(pixels)
	report := &FitReport{
		PointErrors: make([]float64, n),
		Inliers:     make([]bool, n),
		Iterations:  iterations,
		Refined:     refined,
	}
	for i := 0; i < n; i++ {
		e := h.Apply(pixels[i]).Dist(world[i])
		report.PointErrors[i] = e
		report.MeanError += e
		if e > report.MaxError {
			report.MaxError = e
		}
		if e <= threshold {
			report.Inliers[i] = true
			report.InlierCount++
		}
	}
	report.MeanError /= float64(n)
	return report
}
