package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-checked service name reported next to the
// overall ("") status.
const ServiceName = "wellness.payments"

const HealthMethodPrefix = "/grpc.health.v1.Health/"

type readinessChecker interface {
	PingContext(ctx context.Context) error
}

// Server exposes gRPC health for the payments process. Readiness follows the
// database: a failed ping flips both names to NOT_SERVING.
type Server struct {
	health *health.Server
	db     readinessChecker
}

func NewServer(db readinessChecker) *Server {
	return &Server{health: health.NewServer(), db: db}
}

func (s *Server) Register(grpcSrv *grpc.Server) {
	healthpb.RegisterHealthServer(grpcSrv, s.health)
}

// Refresh re-evaluates readiness and returns the published status.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	servingStatus := healthpb.HealthCheckResponse_SERVING
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			loggerWithContext(ctx).WithError(err).Warn("Readiness check failed")
			servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", servingStatus)
	s.health.SetServingStatus(ServiceName, servingStatus)
	return servingStatus
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

func (s *Server) Check(ctx context.Context, service string) (*healthpb.HealthCheckResponse, error) {
	return s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
}
