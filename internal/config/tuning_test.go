package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sidewalk-data/trajectory.report/internal/motion"
)

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetFrameInterval() != motion.DefaultFrameInterval {
		t.Errorf("GetFrameInterval() = %f, want %f", cfg.GetFrameInterval(), motion.DefaultFrameInterval)
	}
	if cfg.GetSensors() != motion.DefaultSensors {
		t.Errorf("GetSensors() = %d, want %d", cfg.GetSensors(), motion.DefaultSensors)
	}
	if cfg.GetMeasurementStd() != motion.DefaultMeasurementStd {
		t.Errorf("GetMeasurementStd() = %f, want %f", cfg.GetMeasurementStd(), motion.DefaultMeasurementStd)
	}
	if cfg.GetWorkers() != DefaultWorkers {
		t.Errorf("GetWorkers() = %d, want %d", cfg.GetWorkers(), DefaultWorkers)
	}
	if cfg.GetUnits() != "mps" {
		t.Errorf("GetUnits() = %q, want mps", cfg.GetUnits())
	}
	if cfg.GetJobDeadline() != DefaultJobDeadline {
		t.Errorf("GetJobDeadline() = %v, want %v", cfg.GetJobDeadline(), DefaultJobDeadline)
	}

	mc := cfg.MotionConfig()
	if mc != motion.DefaultConfig() {
		t.Errorf("MotionConfig() = %+v, want defaults", mc)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "tuning.json")

	testJSON := `{
  "frame_interval": 0.04,
  "sensors": 2,
  "process_std": 0.8,
  "units": "mph",
  "job_deadline": "90s"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetFrameInterval() != 0.04 {
		t.Errorf("GetFrameInterval() = %f, want 0.04", cfg.GetFrameInterval())
	}
	if cfg.GetSensors() != 2 {
		t.Errorf("GetSensors() = %d, want 2", cfg.GetSensors())
	}
	if cfg.GetProcessStd() != 0.8 {
		t.Errorf("GetProcessStd() = %f, want 0.8", cfg.GetProcessStd())
	}
	// Fields omitted from the JSON keep their defaults.
	if cfg.GetMeasurementStd() != motion.DefaultMeasurementStd {
		t.Errorf("GetMeasurementStd() = %f, want default", cfg.GetMeasurementStd())
	}
	if cfg.GetUnits() != "mph" {
		t.Errorf("GetUnits() = %q, want mph", cfg.GetUnits())
	}
	if cfg.GetJobDeadline() != 90*time.Second {
		t.Errorf("GetJobDeadline() = %v, want 90s", cfg.GetJobDeadline())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigRejectsBadFiles(t *testing.T) {
	tmpDir := t.TempDir()

	badExt := filepath.Join(tmpDir, "tuning.yaml")
	if err := os.WriteFile(badExt, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadTuningConfig(badExt); err == nil {
		t.Error("Expected error for non-json extension, got nil")
	}

	badJSON := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(badJSON, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadTuningConfig(badJSON); err == nil {
		t.Error("Expected error for malformed JSON, got nil")
	}

	badValues := filepath.Join(tmpDir, "values.json")
	if err := os.WriteFile(badValues, []byte(`{"frame_interval": -1}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadTuningConfig(badValues); err == nil {
		t.Error("Expected error for negative frame_interval, got nil")
	}
}

func TestTuningConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  TuningConfig
	}{
		{"negative frame_interval", TuningConfig{FrameInterval: ptrFloat64(-0.1)}},
		{"zero sensors", TuningConfig{Sensors: ptrInt(0)}},
		{"zero measurement_std", TuningConfig{MeasurementStd: ptrFloat64(0)}},
		{"negative process_std", TuningConfig{ProcessStd: ptrFloat64(-2)}},
		{"zero initial_covariance", TuningConfig{InitialCovariance: ptrFloat64(0)}},
		{"zero workers", TuningConfig{Workers: ptrInt(0)}},
		{"bad units", TuningConfig{Units: ptrString("furlongs")}},
		{"unparseable deadline", TuningConfig{JobDeadline: ptrString("soon")}},
		{"negative deadline", TuningConfig{JobDeadline: ptrString("-5s")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}

	good := TuningConfig{
		FrameInterval: ptrFloat64(0.05),
		Units:         ptrString("kph"),
		JobDeadline:   ptrString("30s"),
	}
	if err := good.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestTuningConfigMerged(t *testing.T) {
	base := &TuningConfig{
		FrameInterval: ptrFloat64(0.05),
		Workers:       ptrInt(8),
		Units:         ptrString("mph"),
	}
	override := &TuningConfig{
		FrameInterval: ptrFloat64(0.1),
		ProcessStd:    ptrFloat64(2.5),
	}

	merged := base.Merged(override)
	if merged.GetFrameInterval() != 0.1 {
		t.Errorf("Override frame_interval not applied: %f", merged.GetFrameInterval())
	}
	if merged.GetProcessStd() != 2.5 {
		t.Errorf("Override process_std not applied: %f", merged.GetProcessStd())
	}
	if merged.GetWorkers() != 8 {
		t.Errorf("Base workers lost in merge: %d", merged.GetWorkers())
	}
	if merged.GetUnits() != "mph" {
		t.Errorf("Base units lost in merge: %q", merged.GetUnits())
	}

	if *base.FrameInterval != 0.05 {
		t.Errorf("Merge mutated base: %f", *base.FrameInterval)
	}

	if got := (*TuningConfig)(nil).Merged(override); got.GetProcessStd() != 2.5 {
		t.Errorf("Nil base merge = %f, want 2.5", got.GetProcessStd())
	}
	if got := base.Merged(nil); got.GetWorkers() != 8 {
		t.Errorf("Nil override merge = %d, want 8", got.GetWorkers())
	}
}
