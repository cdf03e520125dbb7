// Package cpupmv1 defines the cpupm.v1.Daemon gRPC service. Messages are
// protobuf well-known types; structured payloads travel as
// google.protobuf.Struct and are converted with Encode and Decode.
package cpupmv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified service name.
const ServiceName = "cpupm.v1.Daemon"

// Full method names.
const (
	Daemon_GetInfo_FullMethodName      = "/" + ServiceName + "/GetInfo"
	Daemon_GetStatus_FullMethodName    = "/" + ServiceName + "/GetStatus"
	Daemon_ListProfiles_FullMethodName = "/" + ServiceName + "/ListProfiles"
	Daemon_ApplyProfile_FullMethodName = "/" + ServiceName + "/ApplyProfile"
	Daemon_ListHistory_FullMethodName  = "/" + ServiceName + "/ListHistory"
	Daemon_Restore_FullMethodName      = "/" + ServiceName + "/Restore"
	Daemon_Shutdown_FullMethodName     = "/" + ServiceName + "/Shutdown"
	Daemon_WatchEvents_FullMethodName  = "/" + ServiceName + "/WatchEvents"
)

// DaemonServer is the server API for the cpupm.v1.Daemon service.
type DaemonServer interface {
	// GetInfo returns an Info payload.
	GetInfo(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetStatus returns a StatusReply payload.
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// ListProfiles returns a ProfilesReply payload.
	ListProfiles(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// ApplyProfile takes an ApplyRequest and returns the history Entry.
	ApplyProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListHistory returns up to limit entries as a HistoryReply.
	ListHistory(context.Context, *wrapperspb.Int32Value) (*structpb.Struct, error)
	// Restore restores the snapshot of the entry with the given ID or
	// prefix and returns the new restore Entry.
	Restore(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// Shutdown stops the daemon after the reply is sent.
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	// WatchEvents takes a WatchRequest and streams one Struct per daemon
	// event until the client goes away.
	WatchEvents(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// UnimplementedDaemonServer can be embedded for forward compatibility.
type UnimplementedDaemonServer struct{}

func (UnimplementedDaemonServer) GetInfo(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetInfo not implemented")
}

func (UnimplementedDaemonServer) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStatus not implemented")
}

func (UnimplementedDaemonServer) ListProfiles(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListProfiles not implemented")
}

func (UnimplementedDaemonServer) ApplyProfile(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ApplyProfile not implemented")
}

func (UnimplementedDaemonServer) ListHistory(context.Context, *wrapperspb.Int32Value) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListHistory not implemented")
}

func (UnimplementedDaemonServer) Restore(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Restore not implemented")
}

func (UnimplementedDaemonServer) Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Shutdown not implemented")
}

func (UnimplementedDaemonServer) WatchEvents(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error {
	return status.Error(codes.Unimplemented, "method WatchEvents not implemented")
}

// RegisterDaemonServer registers srv with s.
func RegisterDaemonServer(s grpc.ServiceRegistrar, srv DaemonServer) {
	s.RegisterService(&Daemon_ServiceDesc, srv)
}

// unary builds the method descriptor for one unary RPC.
func unary[Req, Resp proto.Message](method string, newReq func() Req, call func(DaemonServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DaemonServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DaemonServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func _Daemon_WatchEvents_Handler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DaemonServer).WatchEvents(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }
func newStruct() *structpb.Struct { return new(structpb.Struct) }
func newInt32() *wrapperspb.Int32Value { return new(wrapperspb.Int32Value) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

// Daemon_ServiceDesc is the grpc.ServiceDesc for the cpupm.v1.Daemon service.
var Daemon_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DaemonServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetInfo", newEmpty, DaemonServer.GetInfo),
		unary("GetStatus", newEmpty, DaemonServer.GetStatus),
		unary("ListProfiles", newEmpty, DaemonServer.ListProfiles),
		unary("ApplyProfile", newStruct, DaemonServer.ApplyProfile),
		unary("ListHistory", newInt32, DaemonServer.ListHistory),
		unary("Restore", newString, DaemonServer.Restore),
		unary("Shutdown", newEmpty, DaemonServer.Shutdown),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       _Daemon_WatchEvents_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "cpupm/v1/daemon.proto",
}

// DaemonClient is the client API for the cpupm.v1.Daemon service.
type DaemonClient interface {
	GetInfo(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListProfiles(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	ApplyProfile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListHistory(ctx context.Context, in *wrapperspb.Int32Value, opts ...grpc.CallOption) (*structpb.Struct, error)
	Restore(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	WatchEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type daemonClient struct {
	cc grpc.ClientConnInterface
}

// NewDaemonClient wraps cc.
func NewDaemonClient(cc grpc.ClientConnInterface) DaemonClient {
	return &daemonClient{cc: cc}
}

func invoke[Resp proto.Message](ctx context.Context, cc grpc.ClientConnInterface, method string, in proto.Message, out Resp, opts []grpc.CallOption) (Resp, error) {
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		var zero Resp
		return zero, err
	}
	return out, nil
}

func (c *daemonClient) GetInfo(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Daemon_GetInfo_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *daemonClient) GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Daemon_GetStatus_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *daemonClient) ListProfiles(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Daemon_ListProfiles_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *daemonClient) ApplyProfile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Daemon_ApplyProfile_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *daemonClient) ListHistory(ctx context.Context, in *wrapperspb.Int32Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Daemon_ListHistory_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *daemonClient) Restore(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Daemon_Restore_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *daemonClient) Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke(ctx, c.cc, Daemon_Shutdown_FullMethodName, in, new(emptypb.Empty), opts)
}

func (c *daemonClient) WatchEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &Daemon_ServiceDesc.Streams[0], Daemon_WatchEvents_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
