package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const healthTimeout = 3 * time.Second

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status      string   `json:"status"`
	VectorStore string   `json:"vector_store"`
	Providers   []string `json:"providers,omitempty"`
	Timestamp   string   `json:"timestamp"`
}

// HealthChecker is implemented by every storage.Index.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It reports 503 when the vector store is unreachable. providers lists the
// generation chain for operators and does not affect the status.
func NewHealthHandler(store HealthChecker, providers []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		response := HealthResponse{
			Status:      "healthy",
			VectorStore: "connected",
			Providers:   providers,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		status := http.StatusOK

		if err := store.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.VectorStore = "disconnected"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}
}
