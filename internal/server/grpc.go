package server

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	healthhandler "daily-trivia/internal/health/handler"
)

// NewGRPCServer returns a gRPC server exposing grpc.health.v1 backed by health, instrumented with otelgrpc.
func NewGRPCServer(health *healthhandler.Server, logger *zap.Logger) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(RecoverUnary(logger)),
	)
	RegisterServices(s, health)
	return s
}

// RegisterServices registers the health service and server reflection on s.
func RegisterServices(s grpc.ServiceRegistrar, health *healthhandler.Server) {
	healthpb.RegisterHealthServer(s, health.HealthServer())
	if gs, ok := s.(*grpc.Server); ok {
		reflection.Register(gs)
	}
}

// RecoverUnary converts a handler panic into codes.Internal and logs it.
func RecoverUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("grpc: handler panic", zap.String("method", info.FullMethod), zap.Any("panic", v), zap.Stack("stack"))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
