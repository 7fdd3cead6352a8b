package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/x12keeper/internal/core/auth"
)

func TestNew_Disabled(t *testing.T) {
	l := New(0, 10)
	assert.Nil(t, l)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("partner-a"))
	}
}

func TestAllow_BurstPerPartner(t *testing.T) {
	// One token per hour: only the burst is available during the test.
	l := New(1.0/3600, 2)

	assert.True(t, l.Allow("partner-a"))
	assert.True(t, l.Allow("partner-a"))
	assert.False(t, l.Allow("partner-a"))

	assert.True(t, l.Allow("partner-b"), "partners have independent buckets")
}

func TestUnaryInterceptor(t *testing.T) {
	interceptor := New(1.0/3600, 1).UnaryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/x12keeper.v1.SegmentAPI/Serialize"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	ctx := auth.ContextWithPartnerID(context.Background(), "partner-a")

	_, err := interceptor(ctx, nil, info, handler)
	assert.NoError(t, err)

	_, err = interceptor(ctx, nil, info, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// No partner: unauthenticated methods are not limited
	for i := 0; i < 3; i++ {
		_, err = interceptor(context.Background(), nil, info, handler)
		assert.NoError(t, err)
	}
}
