package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "x12keeper.v1.SegmentAPI"

// SegmentAPIServer is the server API for the SegmentAPI service.
// Requests and responses are google.protobuf.Struct messages.
type SegmentAPIServer interface {
	Serialize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetField(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetField(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StoreDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(SegmentAPIServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// SegmentAPIServiceDesc describes the SegmentAPI service for grpc.Server.
var SegmentAPIServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SegmentAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Serialize", SegmentAPIServer.Serialize),
		unaryHandler("GetField", SegmentAPIServer.GetField),
		unaryHandler("SetField", SegmentAPIServer.SetField),
		unaryHandler("StoreDocument", SegmentAPIServer.StoreDocument),
		unaryHandler("FetchDocument", SegmentAPIServer.FetchDocument),
		unaryHandler("ListDocuments", SegmentAPIServer.ListDocuments),
		unaryHandler("DeleteDocument", SegmentAPIServer.DeleteDocument),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "x12keeper/v1/segment_api.proto",
}

// RegisterSegmentAPIServer registers srv on s.
func RegisterSegmentAPIServer(s grpc.ServiceRegistrar, srv SegmentAPIServer) {
	s.RegisterService(&SegmentAPIServiceDesc, srv)
}

// FullMethod returns the full gRPC method name for a SegmentAPI method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SegmentAPIServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(SegmentAPIServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// SegmentAPIClient is a thin client for the SegmentAPI service.
type SegmentAPIClient struct {
	cc grpc.ClientConnInterface
}

// NewSegmentAPIClient creates a client over cc.
func NewSegmentAPIClient(cc grpc.ClientConnInterface) *SegmentAPIClient {
	return &SegmentAPIClient{cc: cc}
}

// Call invokes method with in and returns the response message.
func (c *SegmentAPIClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
