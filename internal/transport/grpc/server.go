package transportgrpc

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/arklim/storefront-iam/internal/transport/grpc/interceptors"
)

// ServerDependencies encapsulates what the gRPC server layer needs.
type ServerDependencies struct {
	Health  *health.Server
	Metrics *grpcinterceptors.GRPCMetrics
	Tracing grpcinterceptors.TracingOptions
	Logger  *zap.Logger
}

// NewServer builds the gRPC server exposing the standard health service and
// reflection, instrumented with Prometheus metrics and OpenTelemetry tracing.
func NewServer(deps ServerDependencies) *grpc.Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	healthServer := deps.Health
	if healthServer == nil {
		healthServer = health.NewServer()
	}

	server := grpc.NewServer(
		grpc.StatsHandler(grpcinterceptors.NewTracingHandler(deps.Tracing)),
		grpc.ChainUnaryInterceptor(deps.Metrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(deps.Metrics.StreamServerInterceptor()),
	)

	healthpb.RegisterHealthServer(server, healthServer)

	// Register reflection service for tools like Postman, grpcurl, etc.
	reflection.Register(server)

	logger.Debug("grpc services registered", zap.Strings("services", serviceNames(server)))
	return server
}

func serviceNames(server *grpc.Server) []string {
	info := server.GetServiceInfo()
	names := make([]string, 0, len(info))
	for name := range info {
		names = append(names, name)
	}
	return names
}
