package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListCalibrationsEmpty(t *testing.T) {
	server := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/calibrations", nil)
	w := httptest.NewRecorder()
	server.listCalibrations(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var summaries []CalibrationSummaryAPI
	if err := json.NewDecoder(w.Body).Decode(&summaries); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("Expected empty list, got %d entries", len(summaries))
	}
}

func TestCalibrationListAndGet(t *testing.T) {
	server := setupTestServer(t, nil)

	cal := testCalibration()
	if err := server.calibrations.InsertCalibration(cal); err != nil {
		t.Fatalf("Failed to insert calibration: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/calibrations", nil)
	w := httptest.NewRecorder()
	server.listCalibrations(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var summaries []CalibrationSummaryAPI
	if err := json.NewDecoder(w.Body).Decode(&summaries); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("Expected 1 calibration, got %d", len(summaries))
	}
	got := summaries[0]
	if got.ID != cal.ID || got.Name != "rig-a" || got.Model != "planar" {
		t.Errorf("Unexpected summary: %+v", got)
	}
	if got.ImageWidth != 1280 || got.ImageHeight != 720 || got.RMS != 0.31 || got.ImagesUsed != 2 {
		t.Errorf("Unexpected summary fields: %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/calibrations/get?id="+cal.ID, nil)
	w = httptest.NewRecorder()
	server.getCalibration(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var detail CalibrationAPI
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if detail.K != cal.Result.K {
		t.Errorf("K = %v, want %v", detail.K, cal.Result.K)
	}
	if len(detail.Dist) != 5 || len(detail.PerViewRMS) != 2 {
		t.Errorf("Unexpected detail arrays: %+v", detail)
	}
	if detail.NewK != nil {
		t.Error("Expected no new_k for a calibration without one")
	}
	if len(detail.ImageFiles) != 2 || detail.ImageFiles[0] != "boards/board_01.jpg" {
		t.Errorf("Unexpected image files: %v", detail.ImageFiles)
	}
}

func TestGetCalibrationErrors(t *testing.T) {
	server := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/calibrations/get", nil)
	w := httptest.NewRecorder()
	server.getCalibration(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing id: expected 400, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/calibrations/get?id=unknown", nil)
	w = httptest.NewRecorder()
	server.getCalibration(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Unknown id: expected 404, got %d", w.Code)
	}
	var errResp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp["error"] == "" {
		t.Error("Expected an error message in the response")
	}
}
