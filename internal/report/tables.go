package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sidewalk-data/trajectory.report/internal/camera"
	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/mapper"
)

// WriteFitTable prints the homography fit report as a text table: one
// row per correspondence with its surveyed and mapped world positions,
// the reprojection error in world units, and an outlier mark, followed
// by the fitted matrix.
func WriteFitTable(w io.Writer, corrs []mapper.Correspondence, m *mapper.Mapper, rep *geom.FitReport) {
	title := fmt.Sprintf("Homography fit (%d correspondences)", len(corrs))
	fmt.Fprintf(w, "%s\n%s\n", title, strings.Repeat("=", len(title)))

	if rep != nil {
		fmt.Fprintf(w, "Inliers: %d/%d   Mean error: %.4g   Max error: %.4g\n\n",
			rep.InlierCount, len(corrs), rep.MeanError, rep.MaxError)
	}

	fmt.Fprintf(w, "  %-16s %-22s %-22s %-22s %-10s\n", "point", "world", "pixel", "mapped", "error")
	for i, c := range corrs {
		mapped := m.Forward(c.Pixel)
		mark := ""
		if rep != nil && i < len(rep.Inliers) && !rep.Inliers[i] {
			mark = "  outlier"
		}
		errVal := "-"
		if rep != nil && i < len(rep.PointErrors) {
			errVal = fmt.Sprintf("%.4g", rep.PointErrors[i])
		}
		fmt.Fprintf(w, "  %-16s %-22s %-22s %-22s %-10s%s\n",
			c.Name,
			fmt.Sprintf("(%.3f, %.3f)", c.World.X, c.World.Y),
			fmt.Sprintf("(%.1f, %.1f)", c.Pixel.X, c.Pixel.Y),
			fmt.Sprintf("(%.3f, %.3f)", mapped.X, mapped.Y),
			errVal, mark)
	}

	coeffs := m.Homography().Coeffs()
	fmt.Fprintf(w, "\nHomography (pixel -> world):\n")
	for row := 0; row < 3; row++ {
		fmt.Fprintf(w, "  [%12.6g %12.6g %12.6g]\n", coeffs[row*3], coeffs[row*3+1], coeffs[row*3+2])
	}
}

// WriteCalibrationTable prints the solver diagnostics of a
// calibration: per-image RMS for every used view and the overall RMS.
func WriteCalibrationTable(w io.Writer, res *camera.CalibrationResult) {
	title := fmt.Sprintf("Calibration (%s, %dx%d)", res.Model, res.ImageWidth, res.ImageHeight)
	fmt.Fprintf(w, "%s\n%s\n", title, strings.Repeat("=", len(title)))
	fmt.Fprintf(w, "Images used: %d\n\n", len(res.ImagesUsed))

	fmt.Fprintf(w, "  %-40s %s\n", "image", "rms")
	for i, img := range res.ImagesUsed {
		rms := "-"
		if i < len(res.PerViewRMS) {
			rms = fmt.Sprintf("%.4f", res.PerViewRMS[i])
		}
		fmt.Fprintf(w, "  %-40s %s\n", filepath.Base(img), rms)
	}

	fmt.Fprintf(w, "\nOverall RMS: %.4f\n", res.RMS)
}
