// Package board detects checkerboard targets in calibration imagery
// and solves for camera intrinsics via OpenCV (gocv).
//
// This is the only package in the module that links against OpenCV, so
// it is imported solely by cmd/calibrate; the mapping and smoothing
// pipeline stays pure Go. Results come back as camera.CalibrationResult
// values, so downstream consumers never see a gocv type.
package board
