// Package api implements the SegmentAPI gRPC service.
package api

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/x12keeper/internal/core/auth"
	"github.com/solatis/x12keeper/internal/core/config"
	"github.com/solatis/x12keeper/internal/core/db"
	"github.com/solatis/x12keeper/internal/segment"
	"github.com/solatis/x12keeper/internal/types"
)

// SegmentAPIService implements SegmentAPIServer.
// Thin orchestration layer over the segment package and the document store.
type SegmentAPIService struct {
	store  *db.Store
	schema segment.Schema
	cfg    *config.SegmentAPIConfig
	logger *zap.Logger
}

var _ SegmentAPIServer = (*SegmentAPIService)(nil)

// NewSegmentAPIService creates service instance with dependencies.
func NewSegmentAPIService(store *db.Store, schema segment.Schema, cfg *config.SegmentAPIConfig, logger *zap.Logger) (*SegmentAPIService, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if schema == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SegmentAPIService{
		store:  store,
		schema: schema,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// partnerFromContext returns the authenticated partner or an Internal error;
// the auth interceptor guarantees one on every SegmentAPI method.
func partnerFromContext(ctx context.Context) (types.PartnerID, error) {
	partnerID := auth.PartnerIDFromContext(ctx)
	if partnerID == "" {
		return "", status.Error(codes.Internal, "missing partner_id in context")
	}
	return partnerID, nil
}

// withTimeout bounds storage calls by the configured request timeout.
func (s *SegmentAPIService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}
