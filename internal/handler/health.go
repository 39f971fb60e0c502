package handler

import (
	"context"
	"net/http"
	"time"
)

// ServiceName is reported by the health endpoints
const ServiceName = "factory-hook"

// HealthResponse represents the JSON response for health endpoints
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// ReadinessResponse represents the JSON response for readiness endpoints
type ReadinessResponse struct {
	Status       string                 `json:"status"`
	Timestamp    time.Time              `json:"timestamp"`
	Service      string                 `json:"service"`
	Dependencies map[string]interface{} `json:"dependencies"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	settingsStore Pinger
	writer        ResponseWriter
	version       string
}

// NewHealthHandler creates a new health handler instance
func NewHealthHandler(settingsStore Pinger, writer ResponseWriter, version string) *HealthHandler {
	return &HealthHandler{settingsStore: settingsStore, writer: writer, version: version}
}

// HandleHealth handles the /health endpoint for Kubernetes liveness probes
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = h.writer.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   ServiceName,
		Version:   h.version,
	})
}

// HandleReady handles the /ready endpoint. The service is ready when the
// settings store answers a ping.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	redisStatus := h.checkConnectivity(r.Context())

	overallStatus := "ready"
	statusCode := http.StatusOK
	if !redisStatus["healthy"].(bool) {
		overallStatus = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	_ = h.writer.WriteJSON(w, statusCode, ReadinessResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Service:   ServiceName,
		Dependencies: map[string]interface{}{
			"redis": redisStatus,
		},
	})
}

// checkConnectivity pings the settings store with a 5-second timeout
func (h *HealthHandler) checkConnectivity(ctx context.Context) map[string]interface{} {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := h.settingsStore.Ping(timeoutCtx)
	duration := time.Since(start)

	if err != nil {
		return map[string]interface{}{
			"healthy":          false,
			"error":            err.Error(),
			"response_time_ms": duration.Milliseconds(),
		}
	}

	return map[string]interface{}{
		"healthy":          true,
		"status":           "connected",
		"response_time_ms": duration.Milliseconds(),
	}
}
