package api

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/x12keeper/internal/segment"
	"github.com/solatis/x12keeper/internal/types"
)

// stringList reads a list of strings from req[key].
func stringList(req *structpb.Struct, key string) ([]string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, invalidArgument("%s required", key)
	}
	return toStrings(key, v)
}

func toStrings(key string, v *structpb.Value) ([]string, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, invalidArgument("%s must be a list of strings", key)
	}
	if len(list.GetValues()) > types.MaxElementsPerSegment {
		return nil, invalidArgument("%s exceeds maximum of %d elements", key, types.MaxElementsPerSegment)
	}

	out := make([]string, len(list.GetValues()))
	for i, item := range list.GetValues() {
		sv, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, invalidArgument("%s[%d] must be a string", key, i)
		}
		out[i] = sv.StringValue
	}
	return out, nil
}

// stringField reads a required string from req[key].
func stringField(req *structpb.Struct, key string) (string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return "", invalidArgument("%s required", key)
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", invalidArgument("%s must be a string", key)
	}
	return sv.StringValue, nil
}

func boolField(req *structpb.Struct, key string) bool {
	return req.GetFields()[key].GetBoolValue()
}

func stringsValue(ss []string) *structpb.Value {
	values := make([]*structpb.Value, len(ss))
	for i, s := range ss {
		values[i] = structpb.NewStringValue(s)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

// fieldsValue encodes Fields as a list of [key, value] pairs. A Struct map
// would lose emission order.
func fieldsValue(fields segment.Fields) *structpb.Value {
	pairs := make([]*structpb.Value, len(fields))
	for i, f := range fields {
		pairs[i] = stringsValue([]string{f.Key, f.Value})
	}
	return structpb.NewListValue(&structpb.ListValue{Values: pairs})
}

// typedValue encodes a coerced element. Dates are CCYY-MM-DD, times are Go
// duration strings since midnight.
func typedValue(r segment.CoercionResult) *structpb.Value {
	if r.IsNull {
		return structpb.NewNullValue()
	}
	switch v := r.Value.(type) {
	case float64:
		return structpb.NewNumberValue(v)
	case time.Time:
		return structpb.NewStringValue(v.Format("2006-01-02"))
	case time.Duration:
		return structpb.NewStringValue(v.String())
	case string:
		return structpb.NewStringValue(v)
	default:
		return structpb.NewNullValue()
	}
}

func segmentValue(seg *segment.Segment) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"segment_id": structpb.NewStringValue(seg.ID()),
		"elements":   stringsValue(seg.DataElements()),
		"fields":     fieldsValue(seg.Serialize()),
	}})
}
