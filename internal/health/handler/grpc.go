// Package handler serves grpc.health.v1 for the stats daemon.
package handler

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Checker reports whether a component can currently do its job.
type Checker interface {
	Healthy() bool
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func() bool

// Healthy implements Checker.
func (f CheckerFunc) Healthy() bool { return f() }

// Server implements the standard gRPC health service over a set of named checkers.
// The empty service name reports the daemon as a whole: SERVING only if every checker is healthy.
type Server struct {
	healthpb.UnimplementedHealthServer

	mu       sync.RWMutex
	checkers map[string]Checker
	logger   *zap.Logger
}

// NewServer returns a health Server with no checkers. logger may be nil.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{checkers: map[string]Checker{}, logger: logger}
}

// AddChecker registers c under service, replacing any previous checker with that name.
func (s *Server) AddChecker(service string, c Checker) {
	s.mu.Lock()
	s.checkers[service] = c
	s.mu.Unlock()
}

// Check returns the serving status for req.Service.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := req.GetService()
	if name == "" {
		for svc, c := range s.checkers {
			if !c.Healthy() {
				s.logger.Debug("health: component not serving", zap.String("service", svc))
				return notServing(), nil
			}
		}
		return serving(), nil
	}
	c, ok := s.checkers[name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", name)
	}
	if !c.Healthy() {
		return notServing(), nil
	}
	return serving(), nil
}

// List returns the status of every registered service.
func (s *Server) List(ctx context.Context, req *healthpb.HealthListRequest) (*healthpb.HealthListResponse, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checkers))
	for name := range s.checkers {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	out := &healthpb.HealthListResponse{Statuses: make(map[string]*healthpb.HealthCheckResponse, len(names)+1)}
	for _, name := range append([]string{""}, names...) {
		resp, err := s.Check(ctx, &healthpb.HealthCheckRequest{Service: name})
		if err != nil {
			return nil, err
		}
		out.Statuses[name] = resp
	}
	return out, nil
}

func serving() *healthpb.HealthCheckResponse {
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}
}

func notServing() *healthpb.HealthCheckResponse {
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}
}
