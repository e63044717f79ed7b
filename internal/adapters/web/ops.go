// Package web exposes the operational HTTP surface: health, queue status and
// Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"vulnbridge/internal/core/services/jobs"
)

// OpsServer serves the operational endpoints for a worker process.
type OpsServer struct {
	jobs   *jobs.Service
	server *http.Server
}

// NewOpsServer builds the server on addr.
func NewOpsServer(addr string, jobService *jobs.Service) *OpsServer {
	s := &OpsServer{jobs: jobService}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/queue/status", s.handleQueueStatus)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(mux, "ops"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called. Blocking.
func (s *OpsServer) Start() error {
	log.Printf("[WEB] Ops server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *OpsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *OpsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *OpsServer) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := s.jobs.QueueStatus(r.Context())
	if err != nil {
		log.Printf("[WEB] Queue status failed: %v", err)
		http.Error(w, "queue status unavailable", http.StatusServiceUnavailable)
		return
	}

	queues := make(map[string]int64, len(status))
	for jobType, depth := range status {
		queues[string(jobType)] = depth
	}
	writeJSON(w, http.StatusOK, map[string]any{"queues": queues})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WEB] Failed to encode response: %v", err)
	}
}
