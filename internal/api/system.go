package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/control"
	"github.com/nerrad567/virtuaplant-core/internal/telemetry"
)

// healthCheckTimeout bounds all dependency checks of one health request.
const healthCheckTimeout = 3 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string              `json:"status"`
	Version string              `json:"version"`
	Checks  map[string]string   `json:"checks,omitempty"`
	Runner  control.RunnerStats `json:"runner"`
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string              `json:"timestamp"`
	Version       string              `json:"version"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Runtime       RuntimeMetrics      `json:"runtime"`
	WebSocket     HubStats            `json:"websocket"`
	Runner        control.RunnerStats `json:"runner"`
	Fill          control.FillStatus  `json:"fill"`
	Telemetry     *telemetry.Stats    `json:"telemetry,omitempty"`
	Database      *DatabaseMetrics    `json:"database,omitempty"`
	Sinks         map[string]any      `json:"sinks,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleHealth runs every registered check. Any failure turns the response
// into 503 "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Runner:  s.plant.Stats(),
	}
	status := http.StatusOK

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		for name, c := range s.checks {
			if err := c.HealthCheck(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: s.hub.Stats(),
		Runner:    s.plant.Stats(),
		Fill:      s.plant.Status(),
	}

	if s.recorder != nil {
		st := s.recorder.Stats()
		metrics.Telemetry = &st
	}
	if len(s.sinks) > 0 {
		metrics.Sinks = make(map[string]any, len(s.sinks))
		for name, stats := range s.sinks {
			metrics.Sinks[name] = stats()
		}
	}
	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
