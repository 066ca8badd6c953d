package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMs int64          `json:"duration_ms"`
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type InstallChecker interface {
	IsInstalled(ctx context.Context) (bool, error)
}

type BuildInfo struct {
	Version string `json:"version"`
	Env     string `json:"env"`
}

type HealthHandler struct {
	db      Pinger
	install InstallChecker
	build   BuildInfo
}

func NewHealthHandler(db Pinger, install InstallChecker, build BuildInfo) *HealthHandler {
	return &HealthHandler{db: db, install: install, build: build}
}

func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (h *HealthHandler) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.build)
}

// healthCheckHandler reports the database and install state. An uninstalled
// platform is still healthy; the flag is informational.
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]CheckEntry{
		"database": h.check(ctx, func(ctx context.Context) (map[string]any, error) {
			return nil, h.db.PingContext(ctx)
		}),
	}
	if h.install != nil {
		components["install"] = h.check(ctx, func(ctx context.Context) (map[string]any, error) {
			installed, err := h.install.IsInstalled(ctx)
			return map[string]any{"installed": installed}, err
		})
	}

	overall := HealthHealthy
	for _, c := range components {
		if c.Status == HealthUnhealthy {
			overall = HealthUnhealthy
		}
	}

	statusCode := http.StatusOK
	if overall == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, HealthResponse{
		Status:     overall,
		CheckedAt:  time.Now().UTC(),
		Components: components,
	})
}

func (h *HealthHandler) check(ctx context.Context, run func(context.Context) (map[string]any, error)) CheckEntry {
	start := time.Now()
	details, err := run(ctx)

	entry := CheckEntry{
		Status:     HealthHealthy,
		Details:    details,
		CheckedAt:  time.Now().UTC(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	return entry
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
