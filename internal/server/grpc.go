package server

import (
	"context"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/guoxiaopeng875/txscope/internal/conf"
	"github.com/guoxiaopeng875/txscope/internal/service"
)

// NewGRPCServer serves the standard gRPC health protocol. The service name
// of a check is a database name; the empty name checks every database.
func NewGRPCServer(c *conf.Server, health *service.HealthService) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.Middleware(recovery.Recovery()),
		grpc.CustomHealth(),
	}
	if c != nil && c.GRPC != nil {
		if c.GRPC.Addr != "" {
			opts = append(opts, grpc.Address(c.GRPC.Addr))
		}
		if c.GRPC.Timeout.Duration > 0 {
			opts = append(opts, grpc.Timeout(c.GRPC.Timeout.Duration))
		}
	}
	srv := grpc.NewServer(opts...)
	grpc_health_v1.RegisterHealthServer(srv, &healthServer{health: health})
	return srv
}

type healthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	health *service.HealthService
}

func (s *healthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	statuses, err := s.health.Check(ctx, req.GetService())
	if err != nil {
		if service.ErrUnknownDatabase.Is(err) {
			return nil, status.Errorf(codes.NotFound, "unknown database %q", req.GetService())
		}
		return nil, err
	}
	if !service.Healthy(statuses) {
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}
