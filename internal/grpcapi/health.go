// Package grpcapi exposes the standard gRPC health service backed by the
// same readiness probe as /readyz.
package grpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"plaza.social/internal/obs"
)

const ServiceName = "plaza.moderation"

// Readiness is satisfied by the HTTP ready probe.
type Readiness interface {
	Check(ctx context.Context) error
}

// Health wraps grpc's health server and keeps its status in step with a
// readiness probe.
type Health struct {
	srv       *health.Server
	readiness Readiness
}

func NewHealth(r Readiness) *Health {
	return &Health{srv: health.NewServer(), readiness: r}
}

// Register attaches the health service to s.
func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Server exposes the underlying health server.
func (h *Health) Server() *health.Server { return h.srv }

// Probe runs the readiness check once and publishes the result for both
// the overall ("") and the named service.
func (h *Health) Probe(ctx context.Context) error {
	status := healthpb.HealthCheckResponse_SERVING
	var err error
	if h.readiness != nil {
		err = h.readiness.Check(ctx)
	}
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		obs.Logger().Warn().Err(err).Msg("readiness probe failed")
	}
	obs.SetReady(err == nil)
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)
	return err
}

// Watch probes every interval until ctx ends, then marks the service as
// shutting down.
func (h *Health) Watch(ctx context.Context, interval time.Duration) {
	_ = h.Probe(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			_ = h.Probe(probeCtx)
			cancel()
		}
	}
}

// NewServer builds a gRPC server with the health service registered.
func NewServer(h *Health, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	h.Register(s)
	return s
}
