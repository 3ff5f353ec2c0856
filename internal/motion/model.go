package motion

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// stateDim is the length of the state vector
// [x, vx, ax, y, vy, ay]: position, velocity and acceleration per axis.
const stateDim = 6

// Config carries the tuning knobs for the motion model. There is no
// zero-value defaulting: a zero ProcessStd really means a noiseless
// process model. Start from DefaultConfig and override fields instead.
type Config struct {
	// FrameInterval is the time between consecutive frames in seconds.
	FrameInterval float64

	// Sensors is the number of simultaneous (x, y) observations per
	// frame. Every present frame must carry exactly this many points.
	Sensors int

	// MeasurementStd is the measurement noise standard deviation in
	// world units.
	MeasurementStd float64

	// ProcessStd is the process noise standard deviation, expressed as
	// white acceleration noise.
	ProcessStd float64

	// InitialCovariance is the diagonal value of the initial state
	// covariance.
	InitialCovariance float64
}

// Default tuning. Frame interval matches the 30fps capture rate of the
// recording rigs; the noise figures were tuned against hand-labelled
// sidewalk tracks.
const (
	DefaultFrameInterval     = 1.0 / 30.0
	DefaultSensors           = 1
	DefaultMeasurementStd    = 15.0
	DefaultProcessStd        = 15.0
	DefaultInitialCovariance = 15.0
)

// DefaultConfig returns the standard single-sensor tuning.
func DefaultConfig() Config {
	return Config{
		FrameInterval:     DefaultFrameInterval,
		Sensors:           DefaultSensors,
		MeasurementStd:    DefaultMeasurementStd,
		ProcessStd:        DefaultProcessStd,
		InitialCovariance: DefaultInitialCovariance,
	}
}

// Model holds the precomputed state-space matrices for a given tuning.
// All fields are read-only after NewModel returns, so a single Model
// may serve any number of concurrent filter runs.
type Model struct {
	cfg Config

	f *mat.Dense // state transition, stateDim x stateDim
	q *mat.Dense // process noise covariance, stateDim x stateDim
	h *mat.Dense // measurement matrix, 2*Sensors x stateDim
	r *mat.Dense // measurement noise covariance, 2*Sensors x 2*Sensors
	p *mat.Dense // initial state covariance, stateDim x stateDim
}

// NewModel builds the matrices for cfg.
func NewModel(cfg Config) (*Model, error) {
	if cfg.FrameInterval <= 0 {
		return nil, fmt.Errorf("motion: frame interval must be positive, got %v", cfg.FrameInterval)
	}
	if cfg.Sensors < 1 {
		return nil, fmt.Errorf("motion: sensor count must be at least 1, got %d", cfg.Sensors)
	}
	if cfg.MeasurementStd <= 0 {
		return nil, fmt.Errorf("motion: measurement std must be positive, got %v", cfg.MeasurementStd)
	}
	if cfg.ProcessStd < 0 {
		return nil, fmt.Errorf("motion: process std must be non-negative, got %v", cfg.ProcessStd)
	}
	if cfg.InitialCovariance <= 0 {
		return nil, fmt.Errorf("motion: initial covariance must be positive, got %v", cfg.InitialCovariance)
	}
	return &Model{
		cfg: cfg,
		f:   transitionMatrix(cfg.FrameInterval),
		q:   processNoise(cfg.FrameInterval, cfg.ProcessStd),
		h:   measurementMatrix(cfg.Sensors),
		r:   measurementNoise(cfg.Sensors, cfg.MeasurementStd),
		p:   scaledEye(stateDim, cfg.InitialCovariance),
	}, nil
}

// Config returns the tuning the model was built with.
func (m *Model) Config() Config { return m.cfg }

// Sensors returns the number of points expected per present frame.
func (m *Model) Sensors() int { return m.cfg.Sensors }

// transitionMatrix returns the constant-acceleration transition for one
// frame interval: each axis advances position by velocity and half the
// acceleration, velocity by acceleration.
func transitionMatrix(dt float64) *mat.Dense {
	half := 0.5 * dt * dt
	f := mat.NewDense(stateDim, stateDim, nil)
	for _, off := range []int{0, 3} {
		f.Set(off, off, 1)
		f.Set(off, off+1, dt)
		f.Set(off, off+2, half)
		f.Set(off+1, off+1, 1)
		f.Set(off+1, off+2, dt)
		f.Set(off+2, off+2, 1)
	}
	return f
}

// processNoise returns the discrete white-noise acceleration covariance
// for one axis, replicated for both axes.
func processNoise(dt, std float64) *mat.Dense {
	variance := std * std
	dt2 := dt * dt
	dt3 := dt2 * dt
	dt4 := dt3 * dt
	block := [3][3]float64{
		{0.25 * dt4, 0.5 * dt3, 0.5 * dt2},
		{0.5 * dt3, dt2, dt},
		{0.5 * dt2, dt, 1},
	}
	q := mat.NewDense(stateDim, stateDim, nil)
	for _, off := range []int{0, 3} {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				q.Set(off+i, off+j, block[i][j]*variance)
			}
		}
	}
	return q
}

// measurementMatrix selects the two position components once per
// sensor. Rows are ordered x then y for sensor 0, then sensor 1, and
// so on, matching the measurement vector layout.
func measurementMatrix(sensors int) *mat.Dense {
	h := mat.NewDense(2*sensors, stateDim, nil)
	for s := 0; s < sensors; s++ {
		h.Set(2*s, 0, 1)
		h.Set(2*s+1, 3, 1)
	}
	return h
}

func measurementNoise(sensors int, std float64) *mat.Dense {
	return scaledEye(2*sensors, std*std)
}

func scaledEye(n int, v float64) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, v)
	}
	return m
}
