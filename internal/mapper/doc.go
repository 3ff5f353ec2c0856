// Package mapper converts pixel coordinates from a calibrated camera
// into world coordinates on the ground plane and back.
//
// A Mapper composes two stages: lens undistortion from a stored
// camera calibration, then a fitted planar homography. The forward
// direction (pixel to world) applies both; the inverse applies only
// the inverse homography and therefore lands in undistorted pixel
// space, not raw sensor space. Fitting consumes named correspondence
// points read from CSV and reports per-point reprojection quality.
//
// Mappers are immutable once built and safe for concurrent use.
package mapper
