// Package motion owns the per-track state estimation core: a
// constant-acceleration linear motion model, a gap-aware forward Kalman
// filter, and a Rauch-Tung-Striebel backward smoother.
//
// Responsibilities: building the state-space matrices (transition,
// measurement, process and measurement noise) for k simultaneous
// sensors, running a single continuous forward pass over a track whose
// frames may be missing measurements, and refining the forward
// estimates with full-track smoothing.
// Key types: Config, Model, Measurement, Estimate.
//
// A Model is immutable after construction and safe to share across
// concurrent track workers; per-track state lives entirely in the
// filter call.
package motion
