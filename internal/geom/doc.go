// Package geom owns the planar geometry core: 2D points, 3x3 projective
// transforms (homographies), and robust homography fitting from
// pixel/world correspondence sets.
//
// Responsibilities: direct linear transform (DLT) estimation with
// Hartley normalisation, RANSAC outlier rejection, Levenberg-Marquardt
// refinement, and per-point reprojection error reporting.
// Key types: Point, Homography, FitReport.
//
// The package is pure computation with no I/O and no dependencies on
// the camera or storage layers; everything here is safe to share across
// concurrent callers once constructed.
package geom
