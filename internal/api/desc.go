package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "inboxsync.v1.Control"

// Method names.
const (
	MethodStatus               = "Status"
	MethodListSessions         = "ListSessions"
	MethodCreateSession        = "CreateSession"
	MethodRenameSession        = "RenameSession"
	MethodDeleteSession        = "DeleteSession"
	MethodConnectSession       = "ConnectSession"
	MethodDisconnectSession    = "DisconnectSession"
	MethodDismissPairing       = "DismissPairing"
	MethodListConversations    = "ListConversations"
	MethodRefreshConversations = "RefreshConversations"
	MethodOpen                 = "Open"
	MethodMessages             = "Messages"
	MethodSend                 = "Send"
	MethodSendTemplate         = "SendTemplate"
	MethodListTemplates        = "ListTemplates"
	MethodFailedSends          = "FailedSends"
	MethodResend               = "Resend"
	MethodWatch                = "Watch"
)

// ControlServer is the handler type registered with grpc. Requests and
// responses are structpb.Struct values carrying the JSON shapes in types.go.
type ControlServer interface {
	Watch(req *structpb.Struct, stream grpc.ServerStream) error
}

type unaryFunc func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unaryMethod(name string, fn unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(ctx, req.(*structpb.Struct))
			})
		},
	}
}

var watchStream = grpc.StreamDesc{
	StreamName:    MethodWatch,
	ServerStreams: true,
	Handler: func(srv any, stream grpc.ServerStream) error {
		in := new(structpb.Struct)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return srv.(ControlServer).Watch(in, stream)
	},
}

// Register adds the control service to a grpc server.
func Register(gs *grpc.Server, s *Service) {
	var methods []grpc.MethodDesc
	for name, fn := range s.unary() {
		methods = append(methods, unaryMethod(name, fn))
	}
	gs.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*ControlServer)(nil),
		Methods:     methods,
		Streams:     []grpc.StreamDesc{watchStream},
		Metadata:    "inboxsync/v1/control.proto",
	}, s)
}
