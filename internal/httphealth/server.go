// Package httphealth is C17: the trivial HTTP surface spec.md places out of
// core scope for its *logic* but which still needs an implementation — a
// liveness route and a readiness route backed by a db ping and pool health,
// plus the Prometheus exposition endpoint. Adapted from
// internal/infra/worker/health.go's liveness/readiness server shape,
// generalized from a boolean "isReady" flag to an active db-ping + pool
// health check on every request, and extended with /metrics.
package httphealth

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feedmind/internal/llmpool"
)

// Server exposes liveness, readiness, and metrics routes on one address.
type Server struct {
	addr    string
	db      *sql.DB
	manager *llmpool.Manager
	logger  *slog.Logger
	server  *http.Server
}

// New builds a Server. manager may be nil if pools have not finished
// loading yet; readiness then reports no healthy pools.
func New(addr string, db *sql.DB, manager *llmpool.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, db: db, manager: manager, logger: logger}
}

type poolStatus struct {
	Name    string `json:"name"`
	Healthy int    `json:"healthy"`
	Total   int    `json:"total"`
}

type readinessResponse struct {
	DB    bool         `json:"db"`
	Pools []poolStatus `json:"pools"`
}

// Start serves until ctx is canceled, then shuts down within 5s.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleLiveness)
	mux.HandleFunc("/healthz", s.handleReadiness)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("health server starting", slog.String("addr", s.addr))
		if err := s.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("health server shutting down")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		return http.ErrServerClosed
	case err := <-errChan:
		if err == http.ErrServerClosed {
			return err
		}
		s.logger.Error("health server failed", slog.Any("error", err))
		return err
	}
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := s.db != nil && s.db.PingContext(ctx) == nil

	var pools []poolStatus
	anyHealthy := false
	if s.manager != nil {
		for _, st := range s.manager.Statuses() {
			pools = append(pools, poolStatus{Name: st.Name, Healthy: st.HealthyCount, Total: st.TotalEndpoints})
			if st.HealthyCount > 0 {
				anyHealthy = true
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if dbOK && anyHealthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(readinessResponse{DB: dbOK, Pools: pools}); err != nil {
		s.logger.Error("failed to encode readiness response", slog.Any("error", err))
	}
}
