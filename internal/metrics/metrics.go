// Package metrics holds the Prometheus collectors for the segment API.
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/solatis/x12keeper/internal/types"
)

const namespace = "x12keeper"

var (
	grpcRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC unary request duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method"},
	)

	grpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC unary requests",
		},
		[]string{"method", "code"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests on the metrics listener",
		},
		[]string{"method", "path", "status"},
	)

	// ResolutionsTotal counts field reference resolutions by outcome.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_resolutions_total",
			Help:      "Field reference resolutions by outcome",
		},
		[]string{"outcome"}, // "ok" / "not_found" / "out_of_range" / "error"
	)

	// SegmentsStoredTotal counts segments persisted in documents.
	SegmentsStoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_stored_total",
			Help:      "Total segments persisted in stored documents",
		},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(grpcRequestDuration)
		prometheus.MustRegister(grpcRequestsTotal)
		prometheus.MustRegister(httpRequestsTotal)
		prometheus.MustRegister(ResolutionsTotal)
		prometheus.MustRegister(SegmentsStoredTotal)
	})
}

// ObserveResolution records the outcome of resolving a field reference.
func ObserveResolution(err error) {
	ResolutionsTotal.WithLabelValues(resolutionOutcome(err)).Inc()
}

func resolutionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrFieldNotFound):
		return "not_found"
	case errors.Is(err, types.ErrIndexOutOfRange):
		return "out_of_range"
	default:
		return "error"
	}
}
