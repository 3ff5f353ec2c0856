// Package camera owns camera intrinsics: the CalibrationResult type,
// pure-Go point undistortion for the planar and fisheye lens models,
// and versioned blob persistence for reuse across sessions.
//
// Checkerboard detection and the calibration solve itself live in the
// board subpackage, which wraps OpenCV and therefore needs cgo; this
// package stays pure Go so the mapping and smoothing pipeline links
// without OpenCV installed.
package camera
