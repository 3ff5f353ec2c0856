package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sidewalk-data/trajectory.report/internal/motion"
	"github.com/sidewalk-data/trajectory.report/internal/units"
)

// Defaults for the knobs that live outside the motion model.
const (
	DefaultWorkers     = 4
	DefaultJobDeadline = 2 * time.Minute
)

// TuningConfig represents the tuning parameters for a smoothing run.
// The schema is shared between the -config startup file and the
// optional tuning block of POST /api/smooth, so the same JSON works in
// both places. All fields are optional; the Get* methods fall back to
// the package defaults.
type TuningConfig struct {
	// Motion model params
	FrameInterval     *float64 `json:"frame_interval,omitempty"` // seconds between frames
	Sensors           *int     `json:"sensors,omitempty"`
	MeasurementStd    *float64 `json:"measurement_std,omitempty"`
	ProcessStd        *float64 `json:"process_std,omitempty"`
	InitialCovariance *float64 `json:"initial_covariance,omitempty"`

	// Batch params
	Workers *int `json:"workers,omitempty"`

	// Server params
	Units       *string `json:"units,omitempty"`        // display units for speeds: mps, mph, kmph, kph
	JobDeadline *string `json:"job_deadline,omitempty"` // duration string like "90s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil,
// meaning every knob reads as its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.FrameInterval != nil && *c.FrameInterval <= 0 {
		return fmt.Errorf("frame_interval must be positive, got %f", *c.FrameInterval)
	}
	if c.Sensors != nil && *c.Sensors < 1 {
		return fmt.Errorf("sensors must be at least 1, got %d", *c.Sensors)
	}
	if c.MeasurementStd != nil && *c.MeasurementStd <= 0 {
		return fmt.Errorf("measurement_std must be positive, got %f", *c.MeasurementStd)
	}
	if c.ProcessStd != nil && *c.ProcessStd <= 0 {
		return fmt.Errorf("process_std must be positive, got %f", *c.ProcessStd)
	}
	if c.InitialCovariance != nil && *c.InitialCovariance <= 0 {
		return fmt.Errorf("initial_covariance must be positive, got %f", *c.InitialCovariance)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("units must be one of %s, got %q", units.GetValidUnitsString(), *c.Units)
	}
	if c.JobDeadline != nil && *c.JobDeadline != "" {
		d, err := time.ParseDuration(*c.JobDeadline)
		if err != nil {
			return fmt.Errorf("invalid job_deadline '%s': %w", *c.JobDeadline, err)
		}
		if d <= 0 {
			return fmt.Errorf("job_deadline must be positive, got %s", d)
		}
	}
	return nil
}

// Merged returns a new TuningConfig where every field set on override
// replaces the receiver's value. Nil arguments are treated as empty.
func (c *TuningConfig) Merged(override *TuningConfig) *TuningConfig {
	merged := &TuningConfig{}
	if c != nil {
		*merged = *c
	}
	if override == nil {
		return merged
	}
	if override.FrameInterval != nil {
		merged.FrameInterval = override.FrameInterval
	}
	if override.Sensors != nil {
		merged.Sensors = override.Sensors
	}
	if override.MeasurementStd != nil {
		merged.MeasurementStd = override.MeasurementStd
	}
	if override.ProcessStd != nil {
		merged.ProcessStd = override.ProcessStd
	}
	if override.InitialCovariance != nil {
		merged.InitialCovariance = override.InitialCovariance
	}
	if override.Workers != nil {
		merged.Workers = override.Workers
	}
	if override.Units != nil {
		merged.Units = override.Units
	}
	if override.JobDeadline != nil {
		merged.JobDeadline = override.JobDeadline
	}
	return merged
}

// MotionConfig assembles the motion model tuning, filling unset fields
// from the model defaults.
func (c *TuningConfig) MotionConfig() motion.Config {
	return motion.Config{
		FrameInterval:     c.GetFrameInterval(),
		Sensors:           c.GetSensors(),
		MeasurementStd:    c.GetMeasurementStd(),
		ProcessStd:        c.GetProcessStd(),
		InitialCovariance: c.GetInitialCovariance(),
	}
}

// GetFrameInterval returns the frame_interval value or the default.
func (c *TuningConfig) GetFrameInterval() float64 {
	if c.FrameInterval == nil {
		return motion.DefaultFrameInterval
	}
	return *c.FrameInterval
}

// GetSensors returns the sensors value or the default.
func (c *TuningConfig) GetSensors() int {
	if c.Sensors == nil {
		return motion.DefaultSensors
	}
	return *c.Sensors
}

// GetMeasurementStd returns the measurement_std value or the default.
func (c *TuningConfig) GetMeasurementStd() float64 {
	if c.MeasurementStd == nil {
		return motion.DefaultMeasurementStd
	}
	return *c.MeasurementStd
}

// GetProcessStd returns the process_std value or the default.
func (c *TuningConfig) GetProcessStd() float64 {
	if c.ProcessStd == nil {
		return motion.DefaultProcessStd
	}
	return *c.ProcessStd
}

// GetInitialCovariance returns the initial_covariance value or the default.
func (c *TuningConfig) GetInitialCovariance() float64 {
	if c.InitialCovariance == nil {
		return motion.DefaultInitialCovariance
	}
	return *c.InitialCovariance
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

// GetUnits returns the units value or the default.
func (c *TuningConfig) GetUnits() string {
	if c.Units == nil {
		return units.MPS
	}
	return *c.Units
}

// GetJobDeadline parses and returns the JobDeadline as a time.Duration.
func (c *TuningConfig) GetJobDeadline() time.Duration {
	if c.JobDeadline == nil || *c.JobDeadline == "" {
		return DefaultJobDeadline
	}
	d, err := time.ParseDuration(*c.JobDeadline)
	if err != nil {
		return DefaultJobDeadline // default on parse error
	}
	return d
}
