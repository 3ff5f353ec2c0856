package mapper

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/sidewalk-data/trajectory.report/internal/camera"
	"github.com/sidewalk-data/trajectory.report/internal/geom"
)

// sessionBlobVersion is bumped whenever the persisted session layout
// changes incompatibly.
const sessionBlobVersion = 1

// Session captures everything needed to rebuild a mapper later: the
// calibration it was fitted against, the fitted homography, the
// original survey points and the fit diagnostics.
type Session struct {
	Name            string
	CreatedAt       time.Time
	Calibration     *camera.CalibrationResult
	Homography      geom.Homography
	Report          *geom.FitReport
	Correspondences []Correspondence
}

// sessionBlob is the on-disk envelope for a Session. The homography is
// flattened to its coefficients so the envelope stays gob-encodable.
type sessionBlob struct {
	Version         int
	Name            string
	CreatedAt       time.Time
	Calibration     *camera.CalibrationResult
	Homography      [9]float64
	Report          *geom.FitReport
	Correspondences []Correspondence
}

// Mapper rebuilds the session's mapper.
func (s *Session) Mapper() (*Mapper, error) {
	return New(s.Calibration, s.Homography)
}

// Marshal serialises the session as an opaque gob blob inside gzip.
func (s *Session) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	err := enc.Encode(sessionBlob{
		Version:         sessionBlobVersion,
		Name:            s.Name,
		CreatedAt:       s.CreatedAt,
		Calibration:     s.Calibration,
		Homography:      s.Homography.Coeffs(),
		Report:          s.Report,
		Correspondences: s.Correspondences,
	})
	if err != nil {
		gz.Close()
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress session: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalSession restores a Session from a blob written by Marshal,
// rejecting blobs from an unknown layout version. The homography is
// revalidated on the way in, so a corrupted blob cannot yield a
// singular mapper.
func UnmarshalSession(blob []byte) (*Session, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty session blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("read session blob: %w", err)
	}
	defer gz.Close()

	var envelope sessionBlob
	if err := gob.NewDecoder(gz).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode session blob: %w", err)
	}
	if envelope.Version != sessionBlobVersion {
		return nil, fmt.Errorf("unsupported session blob version %d", envelope.Version)
	}

	h, err := geom.NewHomography(envelope.Homography)
	if err != nil {
		return nil, fmt.Errorf("session blob homography: %w", err)
	}
	return &Session{
		Name:            envelope.Name,
		CreatedAt:       envelope.CreatedAt,
		Calibration:     envelope.Calibration,
		Homography:      h,
		Report:          envelope.Report,
		Correspondences: envelope.Correspondences,
	}, nil
}
