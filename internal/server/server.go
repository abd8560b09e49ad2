// Package server exposes a run's planning counts and per-tile status
// ledger over HTTP for external monitoring. It is read-only; renders
// are never triggered through it.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tilefan/tilefan/internal/dispatch"
	"github.com/tilefan/tilefan/pkg/tile"
)

// Server serves the monitoring read model of one run.
type Server struct {
	startTime time.Time
	version   string
	counts    func() dispatch.Counts
	ledger    *dispatch.Ledger
}

// New returns a server over the given counts snapshot and ledger.
func New(version string, counts func() dispatch.Counts, ledger *dispatch.Ledger) *Server {
	return &Server{
		startTime: time.Now(),
		version:   version,
		counts:    counts,
		ledger:    ledger,
	}
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    int       `json:"uptime"`
	Version   string    `json:"version"`
}

// StatusResponse is the payload of GET /status.
type StatusResponse struct {
	dispatch.Counts
	States map[dispatch.State]int `json:"states"`
}

// TileStatusResponse is the payload of GET /tiles/{zoom}/{x}/{y}.
type TileStatusResponse struct {
	Zoom  int            `json:"zoom"`
	X     int            `json:"x"`
	Y     int            `json:"y"`
	State dispatch.State `json:"state"`
}

// Router returns the chi router serving the monitoring API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/health", s.getHealth)
	r.Get("/status", s.getStatus)
	r.Get("/tiles/{zoom}/{x}/{y}", s.getTileStatus)
	return r
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    int(time.Since(s.startTime).Seconds()),
		Version:   s.version,
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{States: map[dispatch.State]int{}}
	if s.counts != nil {
		resp.Counts = s.counts()
	}
	if s.ledger != nil {
		resp.States = s.ledger.Summary()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getTileStatus(w http.ResponseWriter, r *http.Request) {
	zoom, err1 := strconv.Atoi(chi.URLParam(r, "zoom"))
	x, err2 := strconv.Atoi(chi.URLParam(r, "x"))
	y, err3 := strconv.Atoi(chi.URLParam(r, "y"))
	if err1 != nil || err2 != nil || err3 != nil || zoom < 0 || x < 0 || y < 0 {
		http.Error(w, "invalid tile coordinate", http.StatusBadRequest)
		return
	}

	var state dispatch.State
	if s.ledger != nil {
		state = s.ledger.State(tile.Coordinate{Zoom: zoom, X: x, Y: y})
	}
	if state == "" {
		http.Error(w, "tile not tracked", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, TileStatusResponse{Zoom: zoom, X: x, Y: y, State: state})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
