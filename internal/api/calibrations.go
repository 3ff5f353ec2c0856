package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sidewalk-data/trajectory.report/internal/camera"
)

// CalibrationSummaryAPI is the list-view shape for a stored
// calibration. The heavy matrices stay out of the listing; fetch the
// calibration by id for the full result.
type CalibrationSummaryAPI struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	Model       string    `json:"model"`
	ImageWidth  int       `json:"image_width"`
	ImageHeight int       `json:"image_height"`
	RMS         float64   `json:"rms"`
	ImagesUsed  int       `json:"images_used"`
}

// CalibrationAPI is the detail-view shape, matrices included.
type CalibrationAPI struct {
	CalibrationSummaryAPI
	K          [9]float64  `json:"k"`
	Dist       []float64   `json:"dist"`
	NewK       *[9]float64 `json:"new_k,omitempty"`
	ValidROI   [4]int      `json:"valid_roi"`
	PerViewRMS []float64   `json:"per_view_rms"`
	ImageFiles []string    `json:"image_files"`
}

func calibrationToSummary(c *camera.StoredCalibration) CalibrationSummaryAPI {
	return CalibrationSummaryAPI{
		ID:          c.ID,
		Name:        c.Name,
		CreatedAt:   c.CreatedAt,
		Model:       string(c.Result.Model),
		ImageWidth:  c.Result.ImageWidth,
		ImageHeight: c.Result.ImageHeight,
		RMS:         c.Result.RMS,
		ImagesUsed:  len(c.Result.ImagesUsed),
	}
}

func calibrationToAPI(c *camera.StoredCalibration) CalibrationAPI {
	out := CalibrationAPI{
		CalibrationSummaryAPI: calibrationToSummary(c),
		K:                     c.Result.K,
		Dist:                  c.Result.Dist,
		ValidROI:              c.Result.ValidROI,
		PerViewRMS:            c.Result.PerViewRMS,
		ImageFiles:            c.Result.ImagesUsed,
	}
	if c.Result.HasNewK {
		newK := c.Result.NewK
		out.NewK = &newK
	}
	return out
}

func (s *Server) listCalibrations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	cals, err := s.calibrations.ListCalibrations(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve calibrations: %v", err))
		return
	}

	summaries := make([]CalibrationSummaryAPI, len(cals))
	for i, c := range cals {
		summaries[i] = calibrationToSummary(c)
	}

	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write calibrations")
		return
	}
}

func (s *Server) getCalibration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'id' parameter")
		return
	}

	cal, err := s.calibrations.GetCalibration(id)
	if err != nil {
		if errors.Is(err, camera.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "calibration not found")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve calibration: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(calibrationToAPI(cal)); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write calibration")
		return
	}
}
