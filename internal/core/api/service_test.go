package api

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/x12keeper/internal/core/auth"
	"github.com/solatis/x12keeper/internal/core/config"
	"github.com/solatis/x12keeper/internal/core/db"
	"github.com/solatis/x12keeper/internal/segment"
	"github.com/solatis/x12keeper/internal/types"
)

const partnerHeader = "x-test-partner"

// injectPartner stands in for the auth interceptor.
func injectPartner(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if p := md.Get(partnerHeader); len(p) > 0 {
		ctx = auth.ContextWithPartnerID(ctx, types.PartnerID(p[0]))
	}
	return handler(ctx, req)
}

func startService(t *testing.T, cfg *config.SegmentAPIConfig) *SegmentAPIClient {
	t.Helper()

	database, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.MigrateUp(context.Background(), database))
	queries, err := db.LoadQueries(database)
	require.NoError(t, err)

	schema := segment.DefaultSchema()
	svc, err := NewSegmentAPIService(db.NewStore(database, queries, schema, 0), schema, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(injectPartner))
	RegisterSegmentAPIServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewSegmentAPIClient(conn)
}

func asPartner(partner string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), partnerHeader, partner)
}

func list(ss ...string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func request(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func gsElements() []interface{} {
	return list("GS", "PO", "SENDER", "RECEIVER", "20240131", "1230", "42", "X", "005010")
}

func pairs(t *testing.T, v *structpb.Value) [][2]string {
	t.Helper()
	var out [][2]string
	for _, p := range v.GetListValue().GetValues() {
		kv := p.GetListValue().GetValues()
		require.Len(t, kv, 2)
		out = append(out, [2]string{kv[0].GetStringValue(), kv[1].GetStringValue()})
	}
	return out
}

func TestNewSegmentAPIService_NilDependencies(t *testing.T) {
	_, err := NewSegmentAPIService(nil, segment.DefaultSchema(), config.DefaultSegmentAPIConfig(), nil)
	assert.Error(t, err)
}

func TestSerialize(t *testing.T) {
	client := startService(t, config.DefaultSegmentAPIConfig())

	out, err := client.Call(asPartner("p"), "Serialize", request(t, map[string]interface{}{
		"elements": list("N1", "ST", "ACME"),
	}))
	require.NoError(t, err)

	assert.Equal(t, [][2]string{
		{"ID", "N1"},
		{"N101", "ST"},
		{"N102", "ACME"},
	}, pairs(t, out.GetFields()["fields"]))
}

func TestSerialize_InvalidRequests(t *testing.T) {
	client := startService(t, config.DefaultSegmentAPIConfig())

	tests := []struct {
		name string
		req  map[string]interface{}
	}{
		{"missing elements", map[string]interface{}{}},
		{"elements not a list", map[string]interface{}{"elements": "GS*PO"}},
		{"non-string element", map[string]interface{}{"elements": []interface{}{"GS", 1.0}}},
		{"empty list", map[string]interface{}{"elements": []interface{}{}}},
		{"empty tag", map[string]interface{}{"elements": list("", "x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Call(asPartner("p"), "Serialize", request(t, tt.req))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestGetField(t *testing.T) {
	client := startService(t, config.DefaultSegmentAPIConfig())

	tests := []struct {
		name     string
		ref      string
		typed    bool
		wantCode codes.Code
		want     *structpb.Value
	}{
		{"by position", "GS02", false, codes.OK, structpb.NewStringValue("SENDER")},
		{"by name", "ApplicationReceiverCode", false, codes.OK, structpb.NewStringValue("RECEIVER")},
		{"typed number", "GroupControlNumber", true, codes.OK, structpb.NewNumberValue(42)},
		{"typed date", "Date", true, codes.OK, structpb.NewStringValue("2024-01-31")},
		{"position zero", "GS00", false, codes.OutOfRange, nil},
		{"past end", "GS09", false, codes.OutOfRange, nil},
		{"unknown name", "Nope", false, codes.NotFound, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := client.Call(asPartner("p"), "GetField", request(t, map[string]interface{}{
				"elements":  gsElements(),
				"reference": tt.ref,
				"typed":     tt.typed,
			}))
			require.Equal(t, tt.wantCode, status.Code(err), "err: %v", err)
			if tt.wantCode != codes.OK {
				return
			}
			assert.Equal(t, tt.want.AsInterface(), out.GetFields()["value"].AsInterface())
		})
	}
}

func TestGetField_MissingReference(t *testing.T) {
	client := startService(t, config.DefaultSegmentAPIConfig())

	_, err := client.Call(asPartner("p"), "GetField", request(t, map[string]interface{}{
		"elements": gsElements(),
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSetField(t *testing.T) {
	client := startService(t, config.DefaultSegmentAPIConfig())

	out, err := client.Call(asPartner("p"), "SetField", request(t, map[string]interface{}{
		"elements":  gsElements(),
		"reference": "ApplicationSenderCode",
		"value":     "NEWSENDER",
	}))
	require.NoError(t, err)

	elements, err := toStrings("elements", out.GetFields()["elements"])
	require.NoError(t, err)
	assert.Equal(t, "NEWSENDER", elements[2])
	assert.Equal(t, [2]string{"GS02", "NEWSENDER"}, pairs(t, out.GetFields()["fields"])[2])

	_, err = client.Call(asPartner("p"), "SetField", request(t, map[string]interface{}{
		"elements":  gsElements(),
		"reference": "GS00",
		"value":     "XX",
	}))
	assert.Equal(t, codes.OutOfRange, status.Code(err))
}

func storeRequest(t *testing.T) *structpb.Struct {
	return request(t, map[string]interface{}{
		"segments": []interface{}{
			gsElements(),
			list("ST", "850", "0001"),
			list("SE", "2", "0001"),
		},
	})
}

func TestDocuments_Lifecycle(t *testing.T) {
	client := startService(t, config.DefaultSegmentAPIConfig())
	ctx := asPartner("partner-a")

	stored, err := client.Call(ctx, "StoreDocument", storeRequest(t))
	require.NoError(t, err)
	id := stored.GetFields()["document_id"].GetStringValue()
	assert.Equal(t, 3.0, stored.GetFields()["segment_count"].GetNumberValue())

	byID := request(t, map[string]interface{}{"document_id": id})

	fetched, err := client.Call(ctx, "FetchDocument", byID)
	require.NoError(t, err)
	assert.Equal(t, id, fetched.GetFields()["document_id"].GetStringValue())
	createdAt := fetched.GetFields()["created_at"].GetStringValue()
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	require.NoError(t, err)
	assert.True(t, created.Equal(types.DocumentIDTime(types.DocumentID(id))))
	segs := fetched.GetFields()["segments"].GetListValue().GetValues()
	require.Len(t, segs, 3)
	assert.Equal(t, "ST", segs[1].GetStructValue().GetFields()["segment_id"].GetStringValue())
	assert.Equal(t, [2]string{"ST02", "0001"}, pairs(t, segs[1].GetStructValue().GetFields()["fields"])[2])

	_, err = client.Call(asPartner("partner-b"), "FetchDocument", byID)
	assert.Equal(t, codes.NotFound, status.Code(err))

	listed, err := client.Call(ctx, "ListDocuments", request(t, map[string]interface{}{"limit": 10.0}))
	require.NoError(t, err)
	docs := listed.GetFields()["documents"].GetListValue().GetValues()
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].GetStructValue().GetFields()["document_id"].GetStringValue())
	assert.Equal(t, createdAt, docs[0].GetStructValue().GetFields()["created_at"].GetStringValue())

	_, err = client.Call(ctx, "DeleteDocument", byID)
	require.NoError(t, err)
	_, err = client.Call(ctx, "FetchDocument", byID)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestDocuments_InvalidRequests(t *testing.T) {
	cfg := config.DefaultSegmentAPIConfig()
	cfg.MaxSegments = 2
	client := startService(t, cfg)
	ctx := asPartner("partner-a")

	_, err := client.Call(ctx, "StoreDocument", storeRequest(t))
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "too many segments")

	_, err = client.Call(ctx, "StoreDocument", request(t, map[string]interface{}{"segments": []interface{}{}}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "empty document")

	_, err = client.Call(ctx, "FetchDocument", request(t, map[string]interface{}{"document_id": "not-a-uuid"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Call(ctx, "DeleteDocument", request(t, map[string]interface{}{"document_id": string(types.NewDocumentID())}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestDocuments_RequirePartner(t *testing.T) {
	client := startService(t, config.DefaultSegmentAPIConfig())

	_, err := client.Call(context.Background(), "StoreDocument", storeRequest(t))
	assert.Equal(t, codes.Internal, status.Code(err))
}
