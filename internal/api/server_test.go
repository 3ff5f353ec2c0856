package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sidewalk-data/trajectory.report/internal/camera"
	"github.com/sidewalk-data/trajectory.report/internal/config"
	"github.com/sidewalk-data/trajectory.report/internal/db"
	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/mapper"
	"github.com/sidewalk-data/trajectory.report/internal/storage/sqlite"
)

// setupTestServer builds a Server over real SQLite stores on a fresh
// migrated database.
func setupTestServer(t *testing.T, tuning *config.TuningConfig) *Server {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	fsys, err := db.MigrationsFS()
	if err != nil {
		database.Close()
		t.Fatalf("Failed to load migrations: %v", err)
	}
	if err := database.MigrateUp(fsys); err != nil {
		database.Close()
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return NewServer(
		sqlite.NewCalibrationStore(database.DB),
		sqlite.NewSessionStore(database.DB),
		sqlite.NewRunStore(database.DB),
		tuning,
	)
}

// testCalibration is a planar calibration with plausible numbers for a
// 720p rig.
func testCalibration() *camera.StoredCalibration {
	return &camera.StoredCalibration{
		Name: "rig-a",
		Result: &camera.CalibrationResult{
			Model:       camera.LensPlanar,
			K:           [9]float64{1000, 0, 640, 0, 1000, 360, 0, 0, 1},
			Dist:        []float64{0.1, -0.05, 0, 0, 0},
			ImageWidth:  1280,
			ImageHeight: 720,
			RMS:         0.31,
			PerViewRMS:  []float64{0.28, 0.33},
			ImagesUsed:  []string{"boards/board_01.jpg", "boards/board_02.jpg"},
		},
	}
}

// testSession carries a pure-scale homography (100 pixels to the world
// unit) and a fit report flagging the last correspondence as an
// outlier.
func testSession(t *testing.T) *mapper.StoredSession {
	t.Helper()
	h, err := geom.NewHomography([9]float64{0.01, 0, 0, 0, 0.01, 0, 0, 0, 1})
	if err != nil {
		t.Fatalf("Failed to build homography: %v", err)
	}
	return &mapper.StoredSession{
		Session: &mapper.Session{
			Name:       "crosswalk-7",
			CreatedAt:  time.Now().UTC(),
			Homography: h,
			Report: &geom.FitReport{
				PointErrors: []float64{0.001, 0.002, 0.001, 0.12},
				MeanError:   0.031,
				MaxError:    0.12,
				Inliers:     []bool{true, true, true, false},
				InlierCount: 3,
				Refined:     true,
			},
			Correspondences: []mapper.Correspondence{
				{Name: "sw", World: geom.Point{}, Pixel: geom.Point{}},
				{Name: "se", World: geom.Point{X: 1}, Pixel: geom.Point{X: 100}},
				{Name: "ne", World: geom.Point{X: 1, Y: 1}, Pixel: geom.Point{X: 100, Y: 100}},
				{Name: "stray", World: geom.Point{Y: 1}, Pixel: geom.Point{X: 14, Y: 88}},
			},
		},
	}
}

func ptrTestString(s string) *string { return &s }

func TestHealthEndpoint(t *testing.T) {
	server := setupTestServer(t, &config.TuningConfig{Units: ptrTestString("mph")})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	server.showHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var health map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if health["units"] != "mph" {
		t.Errorf("Expected units mph, got %v", health["units"])
	}
	if _, ok := health["version"]; !ok {
		t.Error("Expected version in health response")
	}
	if _, ok := health["uptime_seconds"]; !ok {
		t.Error("Expected uptime_seconds in health response")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := setupTestServer(t, nil)
	mux := server.ServeMux()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/health"},
		{http.MethodPost, "/api/calibrations"},
		{http.MethodPost, "/api/calibrations/get"},
		{http.MethodPost, "/api/sessions"},
		{http.MethodDelete, "/api/sessions/get"},
		{http.MethodGet, "/api/map"},
		{http.MethodGet, "/api/smooth"},
		{http.MethodPost, "/api/runs"},
		{http.MethodPost, "/api/runs/get"},
		{http.MethodPost, "/debug/reprojection"},
		{http.MethodPost, "/debug/track"},
		{http.MethodPost, "/debug/track.png"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		query string
		want  int
		ok    bool
	}{
		{"", defaultListLimit, true},
		{"?limit=5", 5, true},
		{"?limit=0", 0, false},
		{"?limit=-3", 0, false},
		{"?limit=abc", 0, false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/runs"+tc.query, nil)
		got, ok := parseLimit(req)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("parseLimit(%q) = (%d, %v), want (%d, %v)", tc.query, got, ok, tc.want, tc.ok)
		}
	}
}
