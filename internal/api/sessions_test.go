package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSessionListAndGet(t *testing.T) {
	server := setupTestServer(t, nil)

	sess := testSession(t)
	if err := server.sessions.InsertSession(sess); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	w := httptest.NewRecorder()
	server.listSessions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var summaries []SessionSummaryAPI
	if err := json.NewDecoder(w.Body).Decode(&summaries); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(summaries))
	}
	got := summaries[0]
	if got.ID != sess.ID || got.Name != "crosswalk-7" {
		t.Errorf("Unexpected summary: %+v", got)
	}
	if got.Correspondences != 4 || got.Inliers != 3 || got.MeanError != 0.031 || !got.Refined {
		t.Errorf("Fit stats missing from summary: %+v", got)
	}
	if got.Calibrated {
		t.Error("Expected calibrated=false for a homography-only session")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/get?id="+sess.ID, nil)
	w = httptest.NewRecorder()
	server.getSession(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var detail SessionAPI
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if detail.Homography[0] != 0.01 || detail.Homography[8] != 1 {
		t.Errorf("Unexpected homography: %v", detail.Homography)
	}
	if len(detail.Points) != 4 {
		t.Fatalf("Expected 4 correspondences, got %d", len(detail.Points))
	}
	stray := detail.Points[3]
	if stray.Name != "stray" || stray.Inlier == nil || *stray.Inlier {
		t.Errorf("Expected stray marked as outlier: %+v", stray)
	}
	if stray.Error == nil || *stray.Error != 0.12 {
		t.Errorf("Expected stray error 0.12, got %+v", stray.Error)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	server := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/get?id=unknown", nil)
	w := httptest.NewRecorder()
	server.getSession(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestMapPoints(t *testing.T) {
	server := setupTestServer(t, nil)

	sess := testSession(t)
	if err := server.sessions.InsertSession(sess); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}

	body := `{"session_id": "` + sess.ID + `", "points": [{"x": 100, "y": 50}, {"x": 0, "y": 200}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/map", strings.NewReader(body))
	w := httptest.NewRecorder()
	server.mapPoints(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var mapped []MappedPointAPI
	if err := json.NewDecoder(w.Body).Decode(&mapped); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(mapped) != 2 {
		t.Fatalf("Expected 2 mapped points, got %d", len(mapped))
	}
	// The session scales pixels down by 100.
	if math.Abs(mapped[0].World.X-1.0) > 1e-9 || math.Abs(mapped[0].World.Y-0.5) > 1e-9 {
		t.Errorf("Point 0 mapped to (%f, %f), want (1, 0.5)", mapped[0].World.X, mapped[0].World.Y)
	}
	if math.Abs(mapped[1].World.X) > 1e-9 || math.Abs(mapped[1].World.Y-2.0) > 1e-9 {
		t.Errorf("Point 1 mapped to (%f, %f), want (0, 2)", mapped[1].World.X, mapped[1].World.Y)
	}
	if mapped[0].Pixel.X != 100 {
		t.Errorf("Expected input pixel echoed back, got %+v", mapped[0].Pixel)
	}
}

func TestMapPointsErrors(t *testing.T) {
	server := setupTestServer(t, nil)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"session_id": `, http.StatusBadRequest},
		{"missing session", `{"points": [{"x": 1, "y": 2}]}`, http.StatusBadRequest},
		{"no points", `{"session_id": "abc", "points": []}`, http.StatusBadRequest},
		{"unknown session", `{"session_id": "abc", "points": [{"x": 1, "y": 2}]}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/map", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			server.mapPoints(w, req)
			if w.Code != tc.want {
				t.Errorf("Expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}
