package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/motion"
	"github.com/sidewalk-data/trajectory.report/internal/track"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// chartTrack is a short diagonal walk with one unobserved frame.
func chartTrack() track.SmoothedTrack {
	frames := make([]track.SmoothedFrame, 6)
	for i := range frames {
		x := float64(i)
		frames[i] = track.SmoothedFrame{
			Frame:    40 + i,
			Observed: i != 2,
			Smoothed: motion.Kinematics{X: x, VX: 1, Y: 0.5 * x, VY: 0.5},
			Forward:  motion.Kinematics{X: x + 0.02, VX: 0.98, Y: 0.5*x - 0.01, VY: 0.49},
			Speed:    1.1,
			PosVarX:  0.05,
			PosVarY:  0.05,
		}
		if frames[i].Observed {
			frames[i].Measured = geom.Point{X: x + 0.05, Y: 0.5*x + 0.04}
		}
	}
	return track.SmoothedTrack{ID: "walker-5", Start: 40, Frames: frames}
}

func insertChartRun(t *testing.T, server *Server) string {
	t.Helper()
	run := &track.Run{Source: "chart-test", Config: motion.DefaultConfig()}
	if err := server.runs.InsertRun(run, []track.SmoothedTrack{chartTrack()}, nil); err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}
	return run.ID
}

func TestDebugReprojectionChart(t *testing.T) {
	server := setupTestServer(t, nil)

	sess := testSession(t)
	if err := server.sessions.InsertSession(sess); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/reprojection?session="+sess.ID, nil)
	w := httptest.NewRecorder()
	server.debugReprojection(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Expected html content type, got %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"Reprojection Errors", "surveyed", "outliers", "mapped"} {
		if !strings.Contains(body, want) {
			t.Errorf("Chart body missing %q", want)
		}
	}
}

func TestDebugReprojectionChartErrors(t *testing.T) {
	server := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/debug/reprojection", nil)
	w := httptest.NewRecorder()
	server.debugReprojection(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing session param: expected 400, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/debug/reprojection?session=unknown", nil)
	w = httptest.NewRecorder()
	server.debugReprojection(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Unknown session: expected 404, got %d", w.Code)
	}
}

func TestDebugTrackChart(t *testing.T) {
	server := setupTestServer(t, nil)
	runID := insertChartRun(t, server)

	req := httptest.NewRequest(http.MethodGet, "/debug/track?run="+runID+"&track=walker-5", nil)
	w := httptest.NewRecorder()
	server.debugTrackChart(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Expected html content type, got %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"Raw vs Forward vs Smoothed", "raw", "forward", "smoothed"} {
		if !strings.Contains(body, want) {
			t.Errorf("Chart body missing %q", want)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/debug/track?run="+runID+"&track=nobody", nil)
	w = httptest.NewRecorder()
	server.debugTrackChart(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Unknown track: expected 404, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/debug/track?run="+runID, nil)
	w = httptest.NewRecorder()
	server.debugTrackChart(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing track param: expected 400, got %d", w.Code)
	}
}

func TestDebugTrackPNG(t *testing.T) {
	server := setupTestServer(t, nil)
	runID := insertChartRun(t, server)

	req := httptest.NewRequest(http.MethodGet, "/debug/track.png?run="+runID+"&track=walker-5", nil)
	w := httptest.NewRecorder()
	server.debugTrackPNG(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png content type, got %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), pngMagic) {
		t.Error("Response body is not a PNG")
	}
}
