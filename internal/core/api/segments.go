package api

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/x12keeper/internal/metrics"
	"github.com/solatis/x12keeper/internal/segment"
)

// buildSegment constructs a segment from req["elements"] through the schema,
// so envelope segments accept their element names.
func (s *SegmentAPIService) buildSegment(ctx context.Context, req *structpb.Struct) (*segment.Segment, error) {
	elements, err := stringList(req, "elements")
	if err != nil {
		return nil, err
	}
	seg, err := s.schema.Build(elements)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return seg, nil
}

// Serialize returns the ordered field serialization of a segment.
func (s *SegmentAPIService) Serialize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	seg, err := s.buildSegment(ctx, req)
	if err != nil {
		return nil, err
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"fields": fieldsValue(seg.Serialize()),
	}}, nil
}

// GetField resolves req["reference"] and returns its value. With
// req["typed"] set, the value is coerced to its registered element type.
func (s *SegmentAPIService) GetField(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	seg, err := s.buildSegment(ctx, req)
	if err != nil {
		return nil, err
	}
	ref, err := stringField(req, "reference")
	if err != nil {
		return nil, err
	}

	index, err := seg.Resolve(ref)
	metrics.ObserveResolution(err)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	value := structpb.NewStringValue(seg.DataElements()[index])
	if boolField(req, "typed") {
		result, err := segment.Coerce(seg.DataElements()[index], seg.TypeOf(index))
		if err != nil {
			return nil, toStatus(ctx, err)
		}
		value = typedValue(result)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"index": structpb.NewNumberValue(float64(index)),
		"value": value,
	}}, nil
}

// SetField writes req["value"] at req["reference"] and returns the updated
// elements and serialization.
func (s *SegmentAPIService) SetField(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	seg, err := s.buildSegment(ctx, req)
	if err != nil {
		return nil, err
	}
	ref, err := stringField(req, "reference")
	if err != nil {
		return nil, err
	}
	value, err := stringField(req, "value")
	if err != nil {
		return nil, err
	}

	err = seg.Set(ref, value)
	metrics.ObserveResolution(err)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"elements": stringsValue(seg.DataElements()),
		"fields":   fieldsValue(seg.Serialize()),
	}}, nil
}
