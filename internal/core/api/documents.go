package api

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/x12keeper/internal/logger"
	"github.com/solatis/x12keeper/internal/metrics"
	"github.com/solatis/x12keeper/internal/segment"
	"github.com/solatis/x12keeper/internal/types"
)

const defaultListLimit = 100

// StoreDocument persists req["segments"], a list of element lists, as one
// document owned by the calling partner.
func (s *SegmentAPIService) StoreDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	partnerID, err := partnerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	raw := req.GetFields()["segments"].GetListValue()
	if raw == nil {
		return nil, invalidArgument("segments must be a list of element lists")
	}
	if n := len(raw.GetValues()); s.cfg.MaxSegments > 0 && n > s.cfg.MaxSegments {
		return nil, invalidArgument("document exceeds maximum of %d segments", s.cfg.MaxSegments)
	}

	segments := make([]*segment.Segment, len(raw.GetValues()))
	for i, v := range raw.GetValues() {
		elements, err := toStrings("segments", v)
		if err != nil {
			return nil, err
		}
		seg, err := s.schema.Build(elements)
		if err != nil {
			return nil, invalidArgument("segments[%d]: %v", i, err)
		}
		segments[i] = seg
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id, err := s.store.SaveDocument(ctx, partnerID, segments)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	metrics.SegmentsStoredTotal.Add(float64(len(segments)))
	logger.FromContext(ctx).Info("stored document",
		zap.String("document_id", string(id)),
		zap.Int("segment_count", len(segments)),
	)

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"document_id":   structpb.NewStringValue(string(id)),
		"segment_count": structpb.NewNumberValue(float64(len(segments))),
	}}, nil
}

// FetchDocument returns a stored document with each segment's elements and
// serialization.
func (s *SegmentAPIService) FetchDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	partnerID, err := partnerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id, err := documentIDField(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc, err := s.store.LoadDocument(ctx, partnerID, id)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	segments := make([]*structpb.Value, len(doc.Segments))
	for i, seg := range doc.Segments {
		segments[i] = segmentValue(seg)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"document_id": structpb.NewStringValue(string(doc.ID)),
		"created_at":  structpb.NewStringValue(doc.CreatedAt.Format(time.RFC3339Nano)),
		"segments":    structpb.NewListValue(&structpb.ListValue{Values: segments}),
	}}, nil
}

// ListDocuments returns summaries of the partner's newest documents.
func (s *SegmentAPIService) ListDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	partnerID, err := partnerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	limit := int(req.GetFields()["limit"].GetNumberValue())
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	docs, err := s.store.ListDocuments(ctx, partnerID, limit)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	items := make([]*structpb.Value, len(docs))
	for i, d := range docs {
		items[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"document_id":   structpb.NewStringValue(string(d.ID)),
			"segment_count": structpb.NewNumberValue(float64(d.SegmentCount)),
			"created_at":    structpb.NewStringValue(d.Created().Format(time.RFC3339Nano)),
		}})
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"documents": structpb.NewListValue(&structpb.ListValue{Values: items}),
	}}, nil
}

// DeleteDocument removes a stored document.
func (s *SegmentAPIService) DeleteDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	partnerID, err := partnerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id, err := documentIDField(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.DeleteDocument(ctx, partnerID, id); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &structpb.Struct{}, nil
}

func documentIDField(req *structpb.Struct) (types.DocumentID, error) {
	raw, err := stringField(req, "document_id")
	if err != nil {
		return "", err
	}
	id, err := types.ParseDocumentID(raw)
	if err != nil {
		return "", invalidArgument("invalid document_id: %v", err)
	}
	return id, nil
}
