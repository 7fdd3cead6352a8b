package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/x12keeper/internal/core/api"
	"github.com/solatis/x12keeper/internal/core/auth"
	"github.com/solatis/x12keeper/internal/core/config"
	"github.com/solatis/x12keeper/internal/core/db"
	"github.com/solatis/x12keeper/internal/logger"
	"github.com/solatis/x12keeper/internal/metrics"
	"github.com/solatis/x12keeper/internal/segment"
)

const testSecretID = "fedcba9876543210fedcba9876543210"

var testSecret = []byte("server-test-secret-0123456789abcdef")

func startServer(t *testing.T, cfg *config.SegmentAPIConfig) (*grpc.ClientConn, string) {
	t.Helper()

	database, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.MigrateUp(context.Background(), database))
	queries, err := db.LoadQueries(database)
	require.NoError(t, err)

	schema := segment.DefaultSchema()
	store := db.NewStore(database, queries, schema, 0)

	key, hash, err := auth.GenerateAPIKey(testSecretID, testSecret)
	require.NoError(t, err)
	_, err = store.CreateAPIKey(context.Background(), "partner-a", hash)
	require.NoError(t, err)

	svc, err := api.NewSegmentAPIService(store, schema, cfg, nil)
	require.NoError(t, err)
	authenticator := auth.NewAuthenticator(map[string][]byte{testSecretID: testSecret}, queries)

	srv, err := NewGRPCServer(cfg, svc, authenticator, zap.NewNop())
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn, key
}

func TestNewGRPCServer_NilDependencies(t *testing.T) {
	_, err := NewGRPCServer(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestGRPCServer_HealthWithoutKey(t *testing.T) {
	conn, _ := startServer(t, config.DefaultSegmentAPIConfig())

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: api.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestGRPCServer_Authentication(t *testing.T) {
	conn, key := startServer(t, config.DefaultSegmentAPIConfig())
	client := api.NewSegmentAPIClient(conn)

	req, err := structpb.NewStruct(map[string]interface{}{
		"elements":  []interface{}{"ST", "850", "0001"},
		"reference": "ST01",
	})
	require.NoError(t, err)

	_, err = client.Call(context.Background(), "GetField", req)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.AppendToOutgoingContext(context.Background(), auth.APIKeyHeader, "x12-v1-bogus")
	_, err = client.Call(bad, "GetField", req)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), auth.APIKeyHeader, key)
	out, err := client.Call(ctx, "GetField", req)
	require.NoError(t, err)
	assert.Equal(t, "850", out.GetFields()["value"].GetStringValue())

	stored, err := client.Call(ctx, "StoreDocument", &structpb.Struct{Fields: map[string]*structpb.Value{
		"segments": structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{req.GetFields()["elements"]}}),
	}})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.GetFields()["document_id"].GetStringValue())
}

func TestGRPCServer_RateLimit(t *testing.T) {
	cfg := config.DefaultSegmentAPIConfig()
	cfg.RateLimit = 1.0 / 3600
	cfg.RateBurst = 2
	conn, key := startServer(t, cfg)
	client := api.NewSegmentAPIClient(conn)

	req, err := structpb.NewStruct(map[string]interface{}{"elements": []interface{}{"ST", "850"}})
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), auth.APIKeyHeader, key)

	for i := 0; i < 2; i++ {
		_, err := client.Call(ctx, "Serialize", req)
		require.NoError(t, err)
	}
	_, err = client.Call(ctx, "Serialize", req)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// Health checks carry no partner and are never limited
	_, err = grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	assert.NoError(t, err)
}

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	interceptor := LoggingInterceptor(zap.New(core))
	info := &grpc.UnaryServerInfo{FullMethod: api.FullMethod("GetField")}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		logger.FromContext(ctx).Info("inside handler")
		return nil, status.Error(codes.OutOfRange, "GS00")
	})
	assert.Equal(t, codes.OutOfRange, status.Code(err))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "inside handler", entries[0].Message)
	assert.Equal(t, api.FullMethod("GetField"), entries[0].ContextMap()["method"])
	assert.Equal(t, "grpc request", entries[1].Message)
	assert.Equal(t, "OutOfRange", entries[1].ContextMap()["code"])
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, levelFor(codes.NotFound))
	assert.Equal(t, zapcore.WarnLevel, levelFor(codes.DeadlineExceeded))
	assert.Equal(t, zapcore.ErrorLevel, levelFor(codes.Unavailable))
}

func TestMetricsRouter(t *testing.T) {
	metrics.Register()
	metrics.ObserveResolution(nil)

	healthy := NewMetricsRouter(func(context.Context) error { return nil })
	unhealthy := NewMetricsRouter(func(context.Context) error { return errors.New("database down") })

	rr := httptest.NewRecorder()
	healthy.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", http.NoBody))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	unhealthy.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	healthy.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", http.NoBody))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "x12keeper_field_resolutions_total"))
}
