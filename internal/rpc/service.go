// Package rpc exposes the cipher operations as the gRPC service
// cipherkit.v1.Cipher. Messages are google.protobuf.Struct values so that
// operation parameters keep the same shape they have in JSON requests and
// recipe files.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cipherkit.v1.Cipher"

// CipherServer is the server API for the Cipher service.
type CipherServer interface {
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Pipeline(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Detect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOperations(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// CipherServiceDesc describes the Cipher service for grpc.ServiceRegistrar.
var CipherServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CipherServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: unaryHandler("Execute", CipherServer.Execute)},
		{MethodName: "Pipeline", Handler: unaryHandler("Pipeline", CipherServer.Pipeline)},
		{MethodName: "Detect", Handler: unaryHandler("Detect", CipherServer.Detect)},
		{MethodName: "ListOperations", Handler: unaryHandler("ListOperations", CipherServer.ListOperations)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cipherkit/v1/cipher.proto",
}

// RegisterCipherServer registers srv on s.
func RegisterCipherServer(s grpc.ServiceRegistrar, srv CipherServer) {
	s.RegisterService(&CipherServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(method string, call func(CipherServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	full := fullMethod(method)
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CipherServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CipherServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
