package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "github.com/BR88C/discord-boilerplate/internal/health/handler"
	"github.com/BR88C/discord-boilerplate/internal/server/interceptors"
)

// Deps holds the services exposed over gRPC.
type Deps struct {
	// Health is registered as grpc.health.v1.Health. If nil, an empty health server (always SERVING) is used.
	Health *healthhandler.Server
	Logger *zap.Logger
}

// quietMethods are logged at debug so health checks do not flood the log.
var quietMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_List_FullMethodName:  true,
}

// New returns a gRPC server instrumented with otelgrpc and the recovery and logging interceptors,
// with every service in deps registered.
func New(deps Deps) *grpc.Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryUnary(logger),
			interceptors.LoggingUnary(logger, quietMethods),
		),
	)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	health := deps.Health
	if health == nil {
		health = healthhandler.NewServer(deps.Logger)
	}
	healthpb.RegisterHealthServer(s, health)
}
