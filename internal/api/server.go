// Package api exposes the tracked storm-cell collection over HTTP for
// downstream consumers (alert composers, dashboards).
package api

import (
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ewsofficial/EdgeWARN/internal/config"
	"github.com/ewsofficial/EdgeWARN/internal/httputil"
	"github.com/ewsofficial/EdgeWARN/internal/storm"
	"github.com/ewsofficial/EdgeWARN/internal/store"
	"github.com/ewsofficial/EdgeWARN/internal/units"
	"github.com/ewsofficial/EdgeWARN/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	mu      sync.RWMutex
	tracked *storm.TrackedSet

	cfg     *config.TuningConfig
	archive *store.Archive // optional
}

// NewServer wraps a tracked set for serving. The archive may be nil
// when no sqlite history is configured.
func NewServer(tracked *storm.TrackedSet, cfg *config.TuningConfig, archive *store.Archive) *Server {
	return &Server{
		tracked: tracked,
		cfg:     cfg,
		archive: archive,
	}
}

// SetTracked swaps the served collection after a new scan is applied.
func (s *Server) SetTracked(tracked *storm.TrackedSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked = tracked
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration
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
	mux.HandleFunc("/api/cells", s.listCells)
	mux.HandleFunc("/api/cells/", s.showCell)
	mux.HandleFunc("/api/history", s.showHistory)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/health", s.healthHandler)
	return mux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	tracks := s.tracked.Len()
	s.mu.RUnlock()

	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":  "ok",
		"tracks":  tracks,
		"version": version.Version,
	})
}

func (s *Server) listCells(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	s.mu.RLock()
	cells := s.tracked.Cells
	s.mu.RUnlock()

	if cells == nil {
		cells = []*storm.TrackedCell{}
	}
	httputil.WriteJSONOK(w, cells)
}

func (s *Server) showCell(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	id, err := strconv.Atoi(r.URL.Path[len("/api/cells/"):])
	if err != nil {
		httputil.BadRequest(w, "invalid cell id")
		return
	}

	s.mu.RLock()
	cell := s.tracked.Get(id)
	s.mu.RUnlock()

	if cell == nil {
		httputil.NotFound(w, fmt.Sprintf("no tracked cell with id %d", id))
		return
	}
	httputil.WriteJSONOK(w, cell)
}

func (s *Server) showHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.archive == nil {
		httputil.NotFound(w, "no archive configured")
		return
	}

	id, err := strconv.Atoi(r.URL.Query().Get("cell_id"))
	if err != nil {
		httputil.BadRequest(w, "invalid 'cell_id' parameter")
		return
	}

	speedUnits := r.URL.Query().Get("units")
	if speedUnits == "" {
		speedUnits = units.MPS
	}
	if !units.IsValid(speedUnits) {
		httputil.BadRequest(w, fmt.Sprintf("invalid 'units' parameter %q", speedUnits))
		return
	}

	history, err := s.archive.CellHistory(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve cell history: %v", err))
		return
	}

	entries := make([]historyEntry, len(history))
	for i, snap := range history {
		entries[i] = historyEntry{CellSnapshot: snap, Units: speedUnits}
		if snap.DX != nil && snap.DY != nil && snap.DT != nil && *snap.DT > 0 {
			speed := units.ConvertSpeed(math.Hypot(*snap.DX, *snap.DY) / *snap.DT, speedUnits)
			entries[i].Speed = &speed
		}
	}
	httputil.WriteJSONOK(w, entries)
}

// historyEntry is a stored snapshot plus the derived motion speed in
// the requested units.
type historyEntry struct {
	store.CellSnapshot
	Speed *float64 `json:"speed,omitempty"`
	Units string   `json:"units"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	cfg := map[string]interface{}{
		"seed_dbz":               s.cfg.GetSeedDBZ(),
		"expand_dbz":             s.cfg.GetExpandDBZ(),
		"min_gates":              s.cfg.GetMinGates(),
		"alpha":                  s.cfg.GetAlpha(),
		"coverage_threshold_pct": s.cfg.GetCoverageThresholdPct(),
		"max_gate_km":            s.cfg.GetMaxGateKm(),
	}

	httputil.WriteJSONOK(w, cfg)
}
