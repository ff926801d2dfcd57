package designd

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check service name of the design daemon.
const ServiceName = "towerworks.foundations.v1.Design"

// GRPCServer serves the standard gRPC health protocol for the daemon.
type GRPCServer struct {
	*grpc.Server
	health *health.Server
}

func NewGRPCServer(opts ...grpc.ServerOption) *GRPCServer {
	s := &GRPCServer{
		Server: grpc.NewServer(opts...),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.Server, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Health exposes the health service, mainly for in-process checks.
func (s *GRPCServer) Health() healthpb.HealthServer {
	return s.health
}

// Shutdown reports NOT_SERVING to watchers and stops the server once
// in-flight calls finish.
func (s *GRPCServer) Shutdown() {
	s.health.Shutdown()
	s.GracefulStop()
}
