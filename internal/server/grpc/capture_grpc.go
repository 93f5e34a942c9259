package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The capture service is described with well-known protobuf types, so no
// generated code is needed:
//
//	service Capture {
//	  rpc Status(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc Record(google.protobuf.Struct) returns (stream google.protobuf.BytesValue);
//	}
const (
	CaptureServiceName        = "voxrec.v1.Capture"
	Capture_Status_FullMethod = "/voxrec.v1.Capture/Status"
	Capture_Record_FullMethod = "/voxrec.v1.Capture/Record"
)

// CaptureServer is the server API for the capture service
type CaptureServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Record(*structpb.Struct, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
}

// RegisterCaptureServer registers srv on s
func RegisterCaptureServer(s grpc.ServiceRegistrar, srv CaptureServer) {
	s.RegisterService(&Capture_ServiceDesc, srv)
}

func _Capture_Status_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CaptureServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Capture_Status_FullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CaptureServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Capture_Record_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(CaptureServer).Record(m, &grpc.GenericServerStream[structpb.Struct, wrapperspb.BytesValue]{ServerStream: stream})
}

// Capture_ServiceDesc is the grpc.ServiceDesc for the capture service
var Capture_ServiceDesc = grpc.ServiceDesc{
	ServiceName: CaptureServiceName,
	HandlerType: (*CaptureServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Status",
			Handler:    _Capture_Status_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Record",
			Handler:       _Capture_Record_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "voxrec/v1/capture.proto",
}

// CaptureClient is the client API for the capture service
type CaptureClient interface {
	Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Record(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error)
}

type captureClient struct {
	cc grpc.ClientConnInterface
}

// NewCaptureClient creates a client on cc
func NewCaptureClient(cc grpc.ClientConnInterface) CaptureClient {
	return &captureClient{cc}
}

func (c *captureClient) Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Capture_Status_FullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *captureClient) Record(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error) {
	stream, err := c.cc.NewStream(ctx, &Capture_ServiceDesc.Streams[0], Capture_Record_FullMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, wrapperspb.BytesValue]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
