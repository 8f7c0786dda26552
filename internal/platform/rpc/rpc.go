// Package rpc holds the plumbing shared by the gRPC services. Requests and responses are
// google.protobuf.Struct messages; the service definitions live in api/proto.
package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// StructHandler is the shape of every service method.
type StructHandler func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// Unary builds the method descriptor for serviceName/method, running interceptors the way generated stubs do.
func Unary(serviceName, method string, h StructHandler) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return h(srv, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return h(srv, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FullMethod returns the gRPC full method name of serviceName/method.
func FullMethod(serviceName, method string) string {
	return "/" + serviceName + "/" + method
}

// String returns the string field key of s, or "" when absent or not a string.
func String(s *structpb.Struct, key string) string {
	if v, ok := s.GetFields()[key]; ok {
		if sv, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}

// Bool returns the bool field key of s, or false when absent.
func Bool(s *structpb.Struct, key string) bool {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetBoolValue()
	}
	return false
}

// Int returns the numeric field key of s truncated to an int64, or 0 when absent.
func Int(s *structpb.Struct, key string) int64 {
	if v, ok := s.GetFields()[key]; ok {
		return int64(v.GetNumberValue())
	}
	return 0
}

// Timestamp formats t for a response field.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Empty returns an empty response message.
func Empty() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}
