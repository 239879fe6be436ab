package main

import (
	"crypto/tls"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// healthService is the gRPC health service name reported per series.
const healthService = "epicast.Forecaster"

// grpcHealth serves the standard gRPC health protocol so orchestrators can
// check the forecaster without going through HTTP.
type grpcHealth struct {
	server *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// newGRPCHealth creates the health server; a non-nil tlsCfg serves over TLS.
func newGRPCHealth(logger *slog.Logger, tlsCfg *tls.Config) *grpcHealth {
	var opts []grpc.ServerOption
	if tlsCfg != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}
	s := grpc.NewServer(opts...)
	h := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, h)
	reflection.Register(s)

	h.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	// not serving until the first forecast is stored
	h.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &grpcHealth{server: s, health: h, logger: logger}
}

// Ready reports whether a forecast is available.
func (g *grpcHealth) Ready(ok bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ok {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus(healthService, status)
}

func (g *grpcHealth) Serve(l net.Listener) error {
	g.logger.Info("grpc health server listening", "address", l.Addr().String())
	return g.server.Serve(l)
}

func (g *grpcHealth) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
