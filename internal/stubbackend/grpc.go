package stubbackend

import (
	"context"
	"errors"

	"github.com/ashureev/vid-companion/internal/agent"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// BackendServer is the server API of the vid.v1.Backend service.
type BackendServer interface {
	Start(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ask(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes vid.v1.Backend for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: agent.BackendServiceName,
	HandlerType: (*BackendServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Start", Handler: startHandler},
		{MethodName: "Ask", Handler: askHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vid/v1/backend.proto",
}

// RegisterGRPC registers b on s.
func (b *Backend) RegisterGRPC(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, &grpcServer{backend: b})
}

type grpcServer struct {
	backend *Backend
}

func (g *grpcServer) Start(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{agent.FieldSessionID: g.backend.StartSession()})
}

func (g *grpcServer) Ask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	reply, err := g.backend.Ask(ctx,
		fields[agent.FieldSessionID].GetStringValue(),
		fields[agent.FieldQuery].GetStringValue(),
	)
	switch {
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidSession):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case err != nil:
		return nil, status.FromContextError(err).Err()
	}
	return structpb.NewStruct(map[string]any{agent.FieldResponse: reply})
}

func startHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BackendServer).Start(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: agent.StartMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BackendServer).Start(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func askHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BackendServer).Ask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: agent.AskMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BackendServer).Ask(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
