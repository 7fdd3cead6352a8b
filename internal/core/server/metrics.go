package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/solatis/x12keeper/internal/metrics"
)

// ReadyFunc reports whether the service can serve traffic.
type ReadyFunc func(ctx context.Context) error

// MetricsServer serves /metrics and /healthz over HTTP.
type MetricsServer struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewMetricsRouter builds the HTTP router for the metrics listener.
func NewMetricsRouter(ready ReadyFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// NewMetricsServer creates a metrics server bound to host:port.
func NewMetricsServer(host string, port int, ready ReadyFunc, logger *zap.Logger) *MetricsServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsServer{
		srv: &http.Server{
			Addr:              net.JoinHostPort(host, fmt.Sprint(port)),
			Handler:           NewMetricsRouter(ready),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown is called.
func (m *MetricsServer) Start() error {
	m.logger.Info("metrics server listening", zap.String("addr", m.srv.Addr))
	if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
