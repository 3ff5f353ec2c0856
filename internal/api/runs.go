package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sidewalk-data/trajectory.report/internal/config"
	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/mapper"
	"github.com/sidewalk-data/trajectory.report/internal/motion"
	"github.com/sidewalk-data/trajectory.report/internal/track"
	"github.com/sidewalk-data/trajectory.report/internal/units"
)

// SmoothRequest is the payload for POST /api/smooth. Tuning overrides
// the server's defaults for this run only; session_id routes the raw
// points through a stored pixel-to-world session before filtering.
type SmoothRequest struct {
	Source    string               `json:"source,omitempty"`
	SessionID string               `json:"session_id,omitempty"`
	Tuning    *config.TuningConfig `json:"tuning,omitempty"`
	Tracks    []TrackInput         `json:"tracks"`
}

// TrackInput is one raw track. Points may skip frames; skipped and
// explicitly empty frames both become gaps for the filter to bridge,
// under the same rules as the CSV reader.
type TrackInput struct {
	ID     string       `json:"id"`
	Points []PointInput `json:"points"`
}

// PointInput is one per-frame reading. X and Y must be both present
// (an observation) or both absent (an explicit gap frame).
type PointInput struct {
	Frame int      `json:"frame"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
}

func (t TrackInput) observations() ([]track.Observation, error) {
	obs := make([]track.Observation, 0, len(t.Points))
	for _, p := range t.Points {
		var m motion.Measurement
		switch {
		case p.X != nil && p.Y != nil:
			m = motion.Observed(geom.Point{X: *p.X, Y: *p.Y})
		case p.X == nil && p.Y == nil:
			m = motion.Missing()
		default:
			return nil, fmt.Errorf("track %s frame %d: x and y must be both present or both absent", t.ID, p.Frame)
		}
		obs = append(obs, track.Observation{Track: t.ID, Frame: p.Frame, Meas: m})
	}
	return obs, nil
}

// RunConfigAPI is the motion tuning a run was executed with.
type RunConfigAPI struct {
	FrameInterval     float64 `json:"frame_interval"`
	Sensors           int     `json:"sensors"`
	MeasurementStd    float64 `json:"measurement_std"`
	ProcessStd        float64 `json:"process_std"`
	InitialCovariance float64 `json:"initial_covariance"`
}

// RunSummaryAPI is the list-view shape for a stored smoothing run.
type RunSummaryAPI struct {
	ID           string       `json:"id"`
	CreatedAt    time.Time    `json:"created_at"`
	Source       string       `json:"source,omitempty"`
	SessionID    string       `json:"session_id,omitempty"`
	TrackCount   int          `json:"track_count"`
	FailureCount int          `json:"failure_count"`
	Config       RunConfigAPI `json:"config"`
}

// TrackSummaryAPI is the per-track line in a smooth response. Speeds
// are converted to the run's display units.
type TrackSummaryAPI struct {
	ID        string  `json:"id"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Frames    int     `json:"frames"`
	Observed  int     `json:"observed"`
	MeanSpeed float64 `json:"mean_speed"`
	P95Speed  float64 `json:"p95_speed"`
}

// FailureAPI is one track the batch could not smooth.
type FailureAPI struct {
	TrackID string `json:"track_id"`
	Error   string `json:"error"`
}

// SmoothResponseAPI is the result of POST /api/smooth.
type SmoothResponseAPI struct {
	RunSummaryAPI
	Units    string            `json:"units"`
	Tracks   []TrackSummaryAPI `json:"tracks"`
	Failures []FailureAPI      `json:"failures,omitempty"`
}

// KinematicsAPI is one full kinematic state on the wire.
type KinematicsAPI struct {
	X  float64 `json:"x"`
	VX float64 `json:"vx"`
	AX float64 `json:"ax"`
	Y  float64 `json:"y"`
	VY float64 `json:"vy"`
	AY float64 `json:"ay"`
}

func kinematicsToAPI(k motion.Kinematics) KinematicsAPI {
	return KinematicsAPI{X: k.X, VX: k.VX, AX: k.AX, Y: k.Y, VY: k.VY, AY: k.AY}
}

// FrameAPI is one output frame. Speed is converted to the server's
// display units; positions stay in world units.
type FrameAPI struct {
	Frame    int           `json:"frame"`
	Observed bool          `json:"observed"`
	Measured *PointAPI     `json:"measured,omitempty"`
	Smoothed KinematicsAPI `json:"smoothed"`
	Forward  KinematicsAPI `json:"forward"`
	Speed    float64       `json:"speed"`
	PosVarX  float64       `json:"pos_var_x"`
	PosVarY  float64       `json:"pos_var_y"`
}

// SmoothedTrackAPI is one track's full output in a run detail.
type SmoothedTrackAPI struct {
	ID        string     `json:"id"`
	Start     int        `json:"start"`
	MeanSpeed float64    `json:"mean_speed"`
	P95Speed  float64    `json:"p95_speed"`
	Frames    []FrameAPI `json:"frames"`
}

// RunAPI is the detail-view shape for GET /api/runs/get.
type RunAPI struct {
	RunSummaryAPI
	Units    string             `json:"units"`
	Tracks   []SmoothedTrackAPI `json:"tracks"`
	Failures []FailureAPI       `json:"failures,omitempty"`
}

func runToSummary(run *track.Run) RunSummaryAPI {
	return RunSummaryAPI{
		ID:           run.ID,
		CreatedAt:    run.CreatedAt,
		Source:       run.Source,
		SessionID:    run.SessionID,
		TrackCount:   run.TrackCount,
		FailureCount: run.FailureCount,
		Config: RunConfigAPI{
			FrameInterval:     run.Config.FrameInterval,
			Sensors:           run.Config.Sensors,
			MeasurementStd:    run.Config.MeasurementStd,
			ProcessStd:        run.Config.ProcessStd,
			InitialCovariance: run.Config.InitialCovariance,
		},
	}
}

func failuresToAPI(failures []track.Failure) []FailureAPI {
	if len(failures) == 0 {
		return nil
	}
	out := make([]FailureAPI, len(failures))
	for i, f := range failures {
		out[i] = FailureAPI{TrackID: f.TrackID, Error: f.Err.Error()}
	}
	return out
}

func (s *Server) smoothedTrackToAPI(st track.SmoothedTrack) SmoothedTrackAPI {
	displayUnits := s.tuning.GetUnits()
	stats := st.SpeedStats()
	out := SmoothedTrackAPI{
		ID:        st.ID,
		Start:     st.Start,
		MeanSpeed: units.ConvertSpeed(stats.Mean, displayUnits),
		P95Speed:  units.ConvertSpeed(stats.P95, displayUnits),
		Frames:    make([]FrameAPI, len(st.Frames)),
	}
	for i, f := range st.Frames {
		frame := FrameAPI{
			Frame:    f.Frame,
			Observed: f.Observed,
			Smoothed: kinematicsToAPI(f.Smoothed),
			Forward:  kinematicsToAPI(f.Forward),
			Speed:    units.ConvertSpeed(f.Speed, displayUnits),
			PosVarX:  f.PosVarX,
			PosVarY:  f.PosVarY,
		}
		if f.Observed {
			measured := pointToAPI(f.Measured)
			frame.Measured = &measured
		}
		out.Frames[i] = frame
	}
	return out
}

func (s *Server) smoothTracks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req SmoothRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if len(req.Tracks) == 0 {
		s.writeJSONError(w, http.StatusBadRequest, "No tracks to smooth")
		return
	}
	if req.Tuning != nil {
		if err := req.Tuning.Validate(); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid tuning: %v", err))
			return
		}
	}
	tuning := s.tuning.Merged(req.Tuning)

	var obs []track.Observation
	for _, t := range req.Tracks {
		trackObs, err := t.observations()
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid tracks: %v", err))
			return
		}
		obs = append(obs, trackObs...)
	}
	tracks, err := track.Collect(obs)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid tracks: %v", err))
		return
	}

	var m *mapper.Mapper
	if req.SessionID != "" {
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
		m, err = stored.Session.Mapper()
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to rebuild mapper: %v", err))
			return
		}
	}

	model, err := motion.NewModel(tuning.MotionConfig())
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid tuning: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), tuning.GetJobDeadline())
	defer cancel()

	proc := &track.Processor{Model: model, Mapper: m, Workers: tuning.GetWorkers()}
	result, err := proc.Run(ctx, tracks)
	if err != nil {
		s.writeJSONError(w, http.StatusGatewayTimeout,
			fmt.Sprintf("Smoothing did not finish: %v", err))
		return
	}

	run := &track.Run{
		SessionID: req.SessionID,
		Source:    req.Source,
		Config:    tuning.MotionConfig(),
	}
	if err := s.runs.InsertRun(run, result.Smoothed, result.Failures); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to store run: %v", err))
		return
	}

	resp := SmoothResponseAPI{
		RunSummaryAPI: runToSummary(run),
		Units:         tuning.GetUnits(),
		Tracks:        make([]TrackSummaryAPI, len(result.Smoothed)),
		Failures:      failuresToAPI(result.Failures),
	}
	for i, st := range result.Smoothed {
		stats := st.SpeedStats()
		resp.Tracks[i] = TrackSummaryAPI{
			ID: st.ID, Start: st.Start, End: st.End(),
			Frames: len(st.Frames), Observed: st.ObservedCount(),
			MeanSpeed: units.ConvertSpeed(stats.Mean, tuning.GetUnits()),
			P95Speed:  units.ConvertSpeed(stats.P95, tuning.GetUnits()),
		}
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write run")
		return
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
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

	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}

	summaries := make([]RunSummaryAPI, len(runs))
	for i, run := range runs {
		summaries[i] = runToSummary(run)
	}

	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
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

	run, err := s.runs.GetRun(id)
	if err != nil {
		if errors.Is(err, track.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "run not found")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run: %v", err))
		return
	}

	tracks, err := s.runs.GetRunTracks(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run tracks: %v", err))
		return
	}
	failures, err := s.runs.GetRunFailures(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run failures: %v", err))
		return
	}

	resp := RunAPI{
		RunSummaryAPI: runToSummary(run),
		Units:         s.tuning.GetUnits(),
		Tracks:        make([]SmoothedTrackAPI, len(tracks)),
		Failures:      failuresToAPI(failures),
	}
	for i, st := range tracks {
		resp.Tracks[i] = s.smoothedTrackToAPI(st)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write run")
		return
	}
}
