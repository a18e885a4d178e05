// Package server assembles the gRPC server exposed next to the HTTP audit API.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Deps holds optional service dependencies for gRPC services.
type Deps struct {
	// Health backs grpc.health.v1.Health. If nil, the health service is not registered.
	Health *health.Server
	// Reflection registers the reflection service, for grpcurl in development.
	Reflection bool
}

// NewGRPCServer returns a server instrumented with the OpenTelemetry stats handler and
// with deps registered.
func NewGRPCServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, deps)
	if deps.Reflection {
		reflection.Register(s)
	}
	return s
}

// RegisterServices registers the gRPC services present in deps.
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}
