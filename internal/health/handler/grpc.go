// Package handler reports service health over gRPC (grpc.health.v1) and HTTP (/healthz, /readyz).
package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the grpc.health.v1 service name reported next to the overall ("") status.
const ServiceName = "trivia.v1.DailyChallenge"

// DefaultCheckInterval is how often Run pings the store.
const DefaultCheckInterval = 15 * time.Second

// pingTimeout bounds a single readiness ping.
const pingTimeout = 2 * time.Second

// Pinger checks store connectivity (e.g. *sql.DB or the Mongo repository).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server owns the grpc.health.v1 server and keeps its status in sync with store pings.
type Server struct {
	pinger Pinger
	health *health.Server
	logger *zap.Logger
}

// NewServer returns a health Server. pinger may be nil, in which case the service is always SERVING.
func NewServer(pinger Pinger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{pinger: pinger, health: health.NewServer(), logger: logger}
}

// HealthServer returns the grpc.health.v1 implementation to register on a gRPC server.
func (s *Server) HealthServer() healthpb.HealthServer {
	return s.health
}

// Check pings the store once and returns the ping error, if any. It does not update the gRPC status.
func (s *Server) Check(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.pinger.PingContext(pingCtx)
}

// Refresh pings the store and publishes SERVING or NOT_SERVING. Ping failures are logged, not returned.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.Check(ctx); err != nil {
		s.logger.Warn("health: store ping failed", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Run refreshes the status immediately and then every interval until ctx is done.
// On return every service is marked NOT_SERVING so load balancers drain the instance.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}
