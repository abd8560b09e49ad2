package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tilefan/tilefan/internal/dispatch"
	"github.com/tilefan/tilefan/pkg/tile"
)

// Test server setup
func setupTestServer() (*httptest.Server, *dispatch.Ledger) {
	ledger := dispatch.NewLedger()
	counts := func() dispatch.Counts {
		return dispatch.Counts{TilesPlanned: 12, TasksSubmitted: 9, TasksSkippedResume: 3}
	}
	srv := New("2.0.0-test", counts, ledger)
	return httptest.NewServer(srv.Router()), ledger
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := setupTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	// Check status code
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	// Check content type
	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	// Parse response
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if health.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got %s", health.Status)
	}
	if health.Version != "2.0.0-test" {
		t.Errorf("Expected version '2.0.0-test', got %s", health.Version)
	}
	if health.Uptime < 0 {
		t.Errorf("Expected non-negative uptime, got %d", health.Uptime)
	}
}

func TestStatusEndpoint(t *testing.T) {
	server, ledger := setupTestServer()
	defer server.Close()

	ledger.Mark(tile.Coordinate{Zoom: 3, X: 1, Y: 2}, dispatch.StateDone)
	ledger.Mark(tile.Coordinate{Zoom: 3, X: 2, Y: 2}, dispatch.StateDone)
	ledger.Mark(tile.Coordinate{Zoom: 3, X: 3, Y: 2}, dispatch.StateFailed)

	resp, err := http.Get(server.URL + "/status")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if status.TilesPlanned != 12 || status.TasksSubmitted != 9 || status.TasksSkippedResume != 3 {
		t.Errorf("Unexpected counts: %+v", status.Counts)
	}
	if status.States[dispatch.StateDone] != 2 {
		t.Errorf("Expected 2 done tiles, got %d", status.States[dispatch.StateDone])
	}
	if status.States[dispatch.StateFailed] != 1 {
		t.Errorf("Expected 1 failed tile, got %d", status.States[dispatch.StateFailed])
	}
}

func TestTileStatusEndpoint(t *testing.T) {
	server, ledger := setupTestServer()
	defer server.Close()

	ledger.Mark(tile.Coordinate{Zoom: 5, X: 10, Y: 12}, dispatch.StateSubmitted)

	resp, err := http.Get(server.URL + "/tiles/5/10/12")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var ts TileStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&ts); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if ts.Zoom != 5 || ts.X != 10 || ts.Y != 12 {
		t.Errorf("Unexpected coordinate in response: %+v", ts)
	}
	if ts.State != dispatch.StateSubmitted {
		t.Errorf("Expected state %q, got %q", dispatch.StateSubmitted, ts.State)
	}
}

func TestTileStatusNotTracked(t *testing.T) {
	server, _ := setupTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/tiles/7/1/1")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 for untracked tile, got %d", resp.StatusCode)
	}
}

func TestTileStatusBadCoordinate(t *testing.T) {
	server, _ := setupTestServer()
	defer server.Close()

	for _, path := range []string{"/tiles/a/1/1", "/tiles/3/-1/1", "/tiles/3/1/x"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("Failed to make request: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400 for %s, got %d", path, resp.StatusCode)
		}
	}
}
