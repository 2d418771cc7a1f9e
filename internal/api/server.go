package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/lane.report/internal/config"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/monitoring"
	"github.com/banshee-data/lane.report/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// ReadingLister is the subset of the database the API reads from.
type ReadingLister interface {
	ListReadings(ctx context.Context, limit int) ([]db.ReadingRow, error)
	ListInfractions(ctx context.Context, limit int) ([]db.ReadingRow, error)
	ListRollups(ctx context.Context, limit int) ([]db.RollupRow, error)
}

type Server struct {
	store ReadingLister
	cfg   *config.EnforcementConfig
	units string
}

func NewServer(store ReadingLister, cfg *config.EnforcementConfig, displayUnits string) *Server {
	return &Server{
		store: store,
		cfg:   cfg,
		units: displayUnits,
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
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/readings", s.listReadings)
	mux.HandleFunc("/api/infractions", s.listInfractions)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseLimit reads the 'limit' query parameter, defaulting to 100.
func (s *Server) parseLimit(r *http.Request) (int, error) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			return 0, fmt.Errorf("invalid 'limit' parameter")
		}
		limit = parsed
	}
	return limit, nil
}

// convertReadingSpeeds applies the configured display unit to a reading's
// speed fields. The database stores km/h.
func (s *Server) convertReadingSpeeds(r db.ReadingRow) db.ReadingRow {
	r.SpeedKMH = units.ConvertSpeed(r.SpeedKMH, s.units)
	r.LimitKMH = units.ConvertSpeed(r.LimitKMH, s.units)
	return r
}

func (s *Server) listReadings(w http.ResponseWriter, r *http.Request) {
	s.serveReadings(w, r, s.store.ListReadings)
}

func (s *Server) listInfractions(w http.ResponseWriter, r *http.Request) {
	s.serveReadings(w, r, s.store.ListInfractions)
}

func (s *Server) serveReadings(
	w http.ResponseWriter, r *http.Request,
	query func(context.Context, int) ([]db.ReadingRow, error),
) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, err := s.parseLimit(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := query(r.Context(), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve readings: %v", err))
		return
	}

	out := make([]db.ReadingRow, len(readings))
	for i, row := range readings {
		out[i] = s.convertReadingSpeeds(row)
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write readings")
		return
	}
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, err := s.parseLimit(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	rollups, err := s.store.ListRollups(r.Context(), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve stats: %v", err))
		return
	}

	for i := range rollups {
		rollups[i].MaxSpeedKMH = units.ConvertSpeed(rollups[i].MaxSpeedKMH, s.units)
		rollups[i].MinSpeedKMH = units.ConvertSpeed(rollups[i].MinSpeedKMH, s.units)
		rollups[i].AvgSpeedKMH = units.ConvertSpeed(rollups[i].AvgSpeedKMH, s.units)
	}

	if err := json.NewEncoder(w).Encode(rollups); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write stats")
		return
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := map[string]interface{}{
		"units":                     s.units,
		"distance_mm":               s.cfg.GetDistanceMM(),
		"light_limit_kmh":           s.cfg.GetLightLimitKMH(),
		"heavy_limit_kmh":           s.cfg.GetHeavyLimitKMH(),
		"warning_threshold_percent": s.cfg.GetWarningThresholdPercent(),
		"quiet_window":              s.cfg.GetQuietWindow().String(),
		"lanes":                     s.cfg.GetLanes(),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}
