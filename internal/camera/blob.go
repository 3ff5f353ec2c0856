package camera

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
)

// calibrationBlobVersion is bumped whenever the persisted layout of
// CalibrationResult changes incompatibly.
const calibrationBlobVersion = 1

// calibrationBlob is the on-disk envelope for a CalibrationResult.
type calibrationBlob struct {
	Version int
	Result  CalibrationResult
}

// Marshal serialises the calibration as an opaque gob blob inside gzip.
// Numeric fields round-trip bit-identically through Unmarshal.
func (c *CalibrationResult) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(calibrationBlob{Version: calibrationBlobVersion, Result: *c}); err != nil {
		gz.Close()
		return nil, fmt.Errorf("encode calibration: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress calibration: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalCalibration restores a CalibrationResult from a blob written
// by Marshal, rejecting blobs from an unknown layout version.
func UnmarshalCalibration(blob []byte) (*CalibrationResult, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty calibration blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("read calibration blob: %w", err)
	}
	defer gz.Close()

	var envelope calibrationBlob
	if err := gob.NewDecoder(gz).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode calibration blob: %w", err)
	}
	if envelope.Version != calibrationBlobVersion {
		return nil, fmt.Errorf("unsupported calibration blob version %d", envelope.Version)
	}
	return &envelope.Result, nil
}
