// Package ratelimit throttles segment API calls per trading partner.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/x12keeper/internal/core/auth"
	"github.com/solatis/x12keeper/internal/types"
)

// PartnerLimiter holds one token bucket per partner.
type PartnerLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[types.PartnerID]*rate.Limiter
}

// New creates a limiter allowing perSecond requests per partner with the
// given burst. perSecond <= 0 returns nil, which allows everything.
func New(perSecond float64, burst int) *PartnerLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &PartnerLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[types.PartnerID]*rate.Limiter),
	}
}

// Allow reports whether partnerID may make a request now.
func (l *PartnerLimiter) Allow(partnerID types.PartnerID) bool {
	if l == nil {
		return true
	}
	return l.limiterFor(partnerID).Allow()
}

func (l *PartnerLimiter) limiterFor(partnerID types.PartnerID) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[partnerID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[partnerID] = lim
	}
	return lim
}

// UnaryInterceptor rejects calls over the partner's budget with
// RESOURCE_EXHAUSTED. Must run after the auth interceptor; calls without a
// partner (health checks) pass through.
func (l *PartnerLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		partnerID := auth.PartnerIDFromContext(ctx)
		if partnerID != "" && !l.Allow(partnerID) {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded for partner %s", partnerID)
		}
		return handler(ctx, req)
	}
}
