package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName   = "autonomax.ops.v1.OpsService"
	RunTaskMethod = "/" + ServiceName + "/RunTask"
)

// OpsServiceServer is the server API of autonomax.ops.v1.OpsService. The
// messages are protobuf well-known types so no generated code is needed.
type OpsServiceServer interface {
	RunTask(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

var OpsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OpsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RunTask", Handler: runTaskHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "autonomax/ops/v1/ops.proto",
}

// RegisterOpsServiceServer registers srv on s.
func RegisterOpsServiceServer(s grpc.ServiceRegistrar, srv OpsServiceServer) {
	s.RegisterService(&OpsServiceDesc, srv)
}

func runTaskHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OpsServiceServer).RunTask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunTaskMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OpsServiceServer).RunTask(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// RunTask calls OpsService/RunTask over cc.
func RunTask(ctx context.Context, cc grpc.ClientConnInterface, task string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, RunTaskMethod, wrapperspb.String(task), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
