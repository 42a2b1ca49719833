// Package grpcserver exposes the shared collections over gRPC as the
// lfcore.v1.Collections service. Messages are protobuf well-known types,
// so no generated code is needed on either side.
package grpcserver

import (
	"context"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"lfcore/infra/memory"
	"lfcore/log"
	"lfcore/service"
)

const ServiceName = "lfcore.v1.Collections"

// CollectionsServer is the server API of lfcore.v1.Collections.
type CollectionsServer interface {
	Push(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Pop(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	Enqueue(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Dequeue(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// Server adapts service.Collections to gRPC.
type Server struct {
	svc *service.Collections
}

func NewServer(svc *service.Collections) *Server {
	return &Server{svc: svc}
}

// Register installs s and a health service on gs.
func Register(gs *grpc.Server, s CollectionsServer) {
	gs.RegisterService(&ServiceDesc, s)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
}

// -------------------- Commands --------------------

func (s *Server) Push(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	if err := s.svc.Push(req.GetValue()); err != nil {
		return nil, toStatus("push", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Enqueue(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	if err := s.svc.Enqueue(req.GetValue()); err != nil {
		return nil, toStatus("enqueue", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Pop(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	b, ok := s.svc.Pop()
	if !ok {
		return nil, status.Error(codes.NotFound, "stack is empty")
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Dequeue(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	b, ok := s.svc.Dequeue()
	if !ok {
		return nil, status.Error(codes.NotFound, "queue is empty")
	}
	return wrapperspb.Bytes(b), nil
}

// -------------------- Queries --------------------

func (s *Server) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.svc.Stats()
	out, err := structpb.NewStruct(map[string]any{
		"records":   st.Records,
		"pending":   st.Pending,
		"retired":   st.Retired,
		"reclaimed": st.Reclaimed,
		"scans":     st.Scans,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(op string, err error) error {
	if errors.Is(err, memory.ErrExhausted) {
		return status.Errorf(codes.ResourceExhausted, "%s: %v", op, err)
	}
	log.ErrorLog.Printf("[gRPC] %s failed: %v", op, err)
	return status.Errorf(codes.Internal, "%s: %v", op, err)
}

// -------------------- Service descriptor --------------------

func pushHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectionsServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Push"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CollectionsServer).Push(ctx, req.(*wrapperspb.BytesValue))
	})
}

func enqueueHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectionsServer).Enqueue(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Enqueue"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CollectionsServer).Enqueue(ctx, req.(*wrapperspb.BytesValue))
	})
}

func popHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectionsServer).Pop(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Pop"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CollectionsServer).Pop(ctx, req.(*emptypb.Empty))
	})
}

func dequeueHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectionsServer).Dequeue(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Dequeue"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CollectionsServer).Dequeue(ctx, req.(*emptypb.Empty))
	})
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectionsServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Stats"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CollectionsServer).Stats(ctx, req.(*emptypb.Empty))
	})
}

// ServiceDesc describes lfcore.v1.Collections.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CollectionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: pushHandler},
		{MethodName: "Pop", Handler: popHandler},
		{MethodName: "Enqueue", Handler: enqueueHandler},
		{MethodName: "Dequeue", Handler: dequeueHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lfcore/v1/collections.proto",
}
