package motion

import (
	"math"
	"testing"
)

func TestTransitionMatrix(t *testing.T) {
	f := transitionMatrix(0.5)

	want := map[[2]int]float64{
		{0, 0}: 1, {0, 1}: 0.5, {0, 2}: 0.125,
		{1, 1}: 1, {1, 2}: 0.5,
		{2, 2}: 1,
		{3, 3}: 1, {3, 4}: 0.5, {3, 5}: 0.125,
		{4, 4}: 1, {4, 5}: 0.5,
		{5, 5}: 1,
	}
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			if got := f.At(i, j); got != want[[2]int{i, j}] {
				t.Errorf("F[%d][%d]: expected %v, got %v", i, j, want[[2]int{i, j}], got)
			}
		}
	}
}

func TestTransitionDecouplesAxes(t *testing.T) {
	f := transitionMatrix(1.0 / 30.0)
	for i := 0; i < 3; i++ {
		for j := 3; j < stateDim; j++ {
			if f.At(i, j) != 0 || f.At(j, i) != 0 {
				t.Errorf("expected zero cross-axis coupling at (%d,%d)", i, j)
			}
		}
	}
}

func TestProcessNoise(t *testing.T) {
	q := processNoise(2, 3)

	// One axis of the discrete white-noise acceleration block with
	// dt=2 and variance 9.
	want := [3][3]float64{
		{36, 36, 18},
		{36, 36, 18},
		{18, 18, 9},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if got := q.At(i, j); math.Abs(got-want[i][j]) > 1e-12 {
				t.Errorf("Q[%d][%d]: expected %v, got %v", i, j, want[i][j], got)
			}
			if got := q.At(3+i, 3+j); math.Abs(got-want[i][j]) > 1e-12 {
				t.Errorf("Q[%d][%d]: expected %v, got %v", 3+i, 3+j, want[i][j], got)
			}
		}
	}
	for i := 0; i < 3; i++ {
		for j := 3; j < stateDim; j++ {
			if q.At(i, j) != 0 {
				t.Errorf("expected zero cross-axis process noise at (%d,%d)", i, j)
			}
		}
	}
}

func TestMeasurementMatrixStacksSensors(t *testing.T) {
	h := measurementMatrix(2)

	rows, cols := h.Dims()
	if rows != 4 || cols != stateDim {
		t.Fatalf("expected 4x%d measurement matrix, got %dx%d", stateDim, rows, cols)
	}
	for s := 0; s < 2; s++ {
		for j := 0; j < stateDim; j++ {
			wantX, wantY := 0.0, 0.0
			if j == 0 {
				wantX = 1
			}
			if j == 3 {
				wantY = 1
			}
			if h.At(2*s, j) != wantX {
				t.Errorf("H[%d][%d]: expected %v, got %v", 2*s, j, wantX, h.At(2*s, j))
			}
			if h.At(2*s+1, j) != wantY {
				t.Errorf("H[%d][%d]: expected %v, got %v", 2*s+1, j, wantY, h.At(2*s+1, j))
			}
		}
	}
}

func TestNewModelValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"default", DefaultConfig(), true},
		{"zero process noise", Config{FrameInterval: 1, Sensors: 1, MeasurementStd: 1, InitialCovariance: 1}, true},
		{"two sensors", Config{FrameInterval: 0.1, Sensors: 2, MeasurementStd: 5, ProcessStd: 5, InitialCovariance: 5}, true},
		{"zero interval", Config{Sensors: 1, MeasurementStd: 1, ProcessStd: 1, InitialCovariance: 1}, false},
		{"negative interval", Config{FrameInterval: -1, Sensors: 1, MeasurementStd: 1, ProcessStd: 1, InitialCovariance: 1}, false},
		{"zero sensors", Config{FrameInterval: 1, MeasurementStd: 1, ProcessStd: 1, InitialCovariance: 1}, false},
		{"zero measurement noise", Config{FrameInterval: 1, Sensors: 1, ProcessStd: 1, InitialCovariance: 1}, false},
		{"negative process noise", Config{FrameInterval: 1, Sensors: 1, MeasurementStd: 1, ProcessStd: -2, InitialCovariance: 1}, false},
		{"zero initial covariance", Config{FrameInterval: 1, Sensors: 1, MeasurementStd: 1, ProcessStd: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewModel(tc.cfg)
			if tc.ok && err != nil {
				t.Errorf("expected config to be accepted, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected config to be rejected")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if math.Abs(cfg.FrameInterval-1.0/30.0) > 1e-15 {
		t.Errorf("expected 30fps frame interval, got %v", cfg.FrameInterval)
	}
	if cfg.Sensors != 1 {
		t.Errorf("expected a single sensor, got %d", cfg.Sensors)
	}
	if cfg.MeasurementStd != 15 || cfg.ProcessStd != 15 || cfg.InitialCovariance != 15 {
		t.Errorf("unexpected default tuning: %+v", cfg)
	}
}
