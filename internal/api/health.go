package api

import (
	"net/http"
	"time"
)

// HealthHandler is the liveness probe. It deliberately avoids touching
// Postgres or Redis so a degraded dependency does not restart the service.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))

	s.Metrics.IncrementRequests("health", http.MethodGet, "200")
	s.Metrics.RecordRequestLatency("health", http.MethodGet, time.Since(start))
}
