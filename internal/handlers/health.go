package handlers

import (
	"context"
	"net/http"
	"time"
)

const version = "1.0.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string           `json:"status"`
	Version     string           `json:"version"`
	Checks      map[string]Check `json:"checks"`
	Connections int              `json:"connections"`
	Timestamp   string           `json:"timestamp"`
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	pgStart := time.Now()
	if err := h.pg.Ping(ctx); err != nil {
		checks["postgres"] = Check{Status: "fail", Message: "connection failed"}
		allHealthy = false
	} else {
		checks["postgres"] = Check{Status: "pass", Latency: time.Since(pgStart).String()}
	}

	redisStart := time.Now()
	if err := h.cache.Ping(ctx); err != nil {
		checks["redis"] = Check{Status: "fail", Message: "connection failed"}
		allHealthy = false
	} else {
		checks["redis"] = Check{Status: "pass", Latency: time.Since(redisStart).String()}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	connections := 0
	if h.hub != nil {
		connections = h.hub.ConnectionCount()
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:      status,
		Version:     version,
		Checks:      checks,
		Connections: connections,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}
