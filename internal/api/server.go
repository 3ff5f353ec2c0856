package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/sidewalk-data/trajectory.report/internal/camera"
	"github.com/sidewalk-data/trajectory.report/internal/config"
	"github.com/sidewalk-data/trajectory.report/internal/mapper"
	"github.com/sidewalk-data/trajectory.report/internal/track"
	"github.com/sidewalk-data/trajectory.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// defaultListLimit bounds list endpoints when the caller does not.
const defaultListLimit = 20

// Server serves the pipeline's HTTP API: stored calibrations, mapping
// sessions, smoothing runs, and the debug charts. The tuning config
// supplies server-wide defaults (display units, batch deadline); a
// smooth request may override the model knobs per call.
type Server struct {
	calibrations camera.Store
	sessions     mapper.SessionStore
	runs         track.Store
	tuning       *config.TuningConfig
	started      time.Time
}

func NewServer(calibrations camera.Store, sessions mapper.SessionStore, runs track.Store, tuning *config.TuningConfig) *Server {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	return &Server{
		calibrations: calibrations,
		sessions:     sessions,
		runs:         runs,
		tuning:       tuning,
		started:      time.Now(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.showHealth)
	mux.HandleFunc("/api/calibrations", s.listCalibrations)
	mux.HandleFunc("/api/calibrations/get", s.getCalibration)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/get", s.getSession)
	mux.HandleFunc("/api/map", s.mapPoints)
	mux.HandleFunc("/api/smooth", s.smoothTracks)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/get", s.getRun)
	mux.HandleFunc("/debug/reprojection", s.debugReprojection)
	mux.HandleFunc("/debug/track", s.debugTrackChart)
	mux.HandleFunc("/debug/track.png", s.debugTrackPNG)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseLimit reads an optional positive 'limit' query parameter.
func parseLimit(r *http.Request) (int, bool) {
	limit := defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	health := map[string]interface{}{
		"version":        version.Version,
		"git_sha":        version.GitSHA,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"units":          s.tuning.GetUnits(),
	}

	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write health")
		return
	}
}
