package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/mapper"
)

// PointAPI is the wire shape for a 2D point.
type PointAPI struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func pointToAPI(p geom.Point) PointAPI { return PointAPI{X: p.X, Y: p.Y} }

// SessionSummaryAPI is the list-view shape for a mapping session with
// its fit quality inline.
type SessionSummaryAPI struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CreatedAt       time.Time `json:"created_at"`
	CalibrationID   string    `json:"calibration_id,omitempty"`
	Calibrated      bool      `json:"calibrated"`
	Correspondences int       `json:"correspondences"`
	Inliers         int       `json:"inliers"`
	MeanError       float64   `json:"mean_error"`
	MaxError        float64   `json:"max_error"`
	Refined         bool      `json:"refined"`
}

// CorrespondenceAPI is one surveyed point pair with its fit residual.
type CorrespondenceAPI struct {
	Name   string   `json:"name"`
	World  PointAPI `json:"world"`
	Pixel  PointAPI `json:"pixel"`
	Error  *float64 `json:"error,omitempty"`
	Inlier *bool    `json:"inlier,omitempty"`
}

// SessionAPI is the detail-view shape.
type SessionAPI struct {
	SessionSummaryAPI
	Homography [9]float64          `json:"homography"`
	Points     []CorrespondenceAPI `json:"points"`
}

func sessionToSummary(st *mapper.StoredSession) SessionSummaryAPI {
	sess := st.Session
	out := SessionSummaryAPI{
		ID:              st.ID,
		Name:            sess.Name,
		CreatedAt:       sess.CreatedAt,
		CalibrationID:   st.CalibrationID,
		Calibrated:      sess.Calibration != nil,
		Correspondences: len(sess.Correspondences),
	}
	if rep := sess.Report; rep != nil {
		out.Inliers = rep.InlierCount
		out.MeanError = rep.MeanError
		out.MaxError = rep.MaxError
		out.Refined = rep.Refined
	}
	return out
}

func sessionToAPI(st *mapper.StoredSession) SessionAPI {
	sess := st.Session
	out := SessionAPI{
		SessionSummaryAPI: sessionToSummary(st),
		Homography:        sess.Homography.Coeffs(),
		Points:            make([]CorrespondenceAPI, len(sess.Correspondences)),
	}
	rep := sess.Report
	for i, c := range sess.Correspondences {
		row := CorrespondenceAPI{
			Name:  c.Name,
			World: pointToAPI(c.World),
			Pixel: pointToAPI(c.Pixel),
		}
		if rep != nil && i < len(rep.PointErrors) {
			e := rep.PointErrors[i]
			row.Error = &e
		}
		if rep != nil && i < len(rep.Inliers) {
			in := rep.Inliers[i]
			row.Inlier = &in
		}
		out.Points[i] = row
	}
	return out
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
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

	sessions, err := s.sessions.ListSessions(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}

	summaries := make([]SessionSummaryAPI, len(sessions))
	for i, sess := range sessions {
		summaries[i] = sessionToSummary(sess)
	}

	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sessions")
		return
	}
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
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

	sess, err := s.sessions.GetSession(id)
	if err != nil {
		if errors.Is(err, mapper.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve session: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(sessionToAPI(sess)); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write session")
		return
	}
}

// MapRequest asks for a batch of pixel points to be projected into
// world coordinates through a stored session.
type MapRequest struct {
	SessionID string     `json:"session_id"`
	Points    []PointAPI `json:"points"`
}

// MappedPointAPI pairs an input pixel with its world projection.
type MappedPointAPI struct {
	Pixel PointAPI `json:"pixel"`
	World PointAPI `json:"world"`
}

func (s *Server) mapPoints(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req MapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.SessionID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session_id' field")
		return
	}
	if len(req.Points) == 0 {
		s.writeJSONError(w, http.StatusBadRequest, "No points to map")
		return
	}

	stored, err := s.sessions.GetSession(req.SessionID)
	if err != nil {
		if errors.Is(err, mapper.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve session: %v", err))
		return
	}

	m, err := stored.Session.Mapper()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to rebuild mapper: %v", err))
		return
	}

	pixels := make([]geom.Point, len(req.Points))
	for i, p := range req.Points {
		pixels[i] = geom.Point{X: p.X, Y: p.Y}
	}
	world := m.ForwardAll(pixels)

	mapped := make([]MappedPointAPI, len(world))
	for i := range world {
		mapped[i] = MappedPointAPI{Pixel: req.Points[i], World: pointToAPI(world[i])}
	}

	if err := json.NewEncoder(w).Encode(mapped); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write mapped points")
		return
	}
}
