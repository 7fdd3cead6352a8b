package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/x12keeper/internal/types"
)

func TestResolutionOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&types.FieldError{Reference: "XX", Err: types.ErrFieldNotFound}, "not_found"},
		{fmt.Errorf("wrapped: %w", types.ErrIndexOutOfRange), "out_of_range"},
		{types.ErrCoercionFailed, "error"},
	}

	for _, tc := range tests {
		if got := resolutionOutcome(tc.err); got != tc.want {
			t.Errorf("resolutionOutcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestObserveResolution(t *testing.T) {
	before := testutil.ToFloat64(ResolutionsTotal.WithLabelValues("not_found"))
	ObserveResolution(types.ErrFieldNotFound)
	after := testutil.ToFloat64(ResolutionsTotal.WithLabelValues("not_found"))

	if after-before != 1 {
		t.Errorf("expected not_found to grow by 1, got %f", after-before)
	}
}

func TestUnaryInterceptor_RecordsCodeAndDuration(t *testing.T) {
	interceptor := UnaryInterceptor()
	method := "/x12keeper.v1.SegmentAPI/GetField"

	ok := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }
	fail := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.OutOfRange, "GS99")
	}

	info := &grpc.UnaryServerInfo{FullMethod: method}
	if _, err := interceptor(context.Background(), nil, info, ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := interceptor(context.Background(), nil, info, fail); status.Code(err) != codes.OutOfRange {
		t.Fatalf("expected OutOfRange to pass through, got %v", err)
	}

	if v := testutil.ToFloat64(grpcRequestsTotal.WithLabelValues(method, "OK")); v < 1 {
		t.Errorf("expected OK count >= 1, got %f", v)
	}
	if v := testutil.ToFloat64(grpcRequestsTotal.WithLabelValues(method, "OutOfRange")); v < 1 {
		t.Errorf("expected OutOfRange count >= 1, got %f", v)
	}
	if testutil.CollectAndCount(grpcRequestDuration) == 0 {
		t.Error("expected grpc_request_duration_seconds to have observations")
	}
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	tests := []struct {
		path   string
		status string
	}{
		{"/healthz", "200"},
		{"/fail", "503"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest("GET", tc.path, http.NoBody))

			if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", tc.path, tc.status)); v < 1 {
				t.Errorf("expected http_requests_total for %s/%s >= 1, got %f", tc.path, tc.status, v)
			}
		})
	}
}

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()
}
