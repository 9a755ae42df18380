package runtime

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// HealthServer exposes the standard gRPC health-checking protocol over a
// node's current topology state, so an external load balancer or
// orchestrator (Kubernetes readiness probes, an haproxy check) can ask
// "is this node fit to serve" without speaking the admin HTTP surface.
type HealthServer struct {
	server  *grpc.Server
	health  *health.Server
	listener net.Listener
}

// NewHealthServer builds a gRPC server exposing only the health service at
// addr. serviceName is registered both under "" (overall server health) and
// under itself, so callers can probe either the process or the replica-set
// role specifically.
func NewHealthServer(addr, serviceName string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    60 * time.Second,
			Timeout: 10 * time.Second,
		}),
	)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{server: grpcServer, health: healthSrv, listener: listener}, nil
}

// Serve blocks, accepting health-check connections until the server stops.
func (h *HealthServer) Serve() error {
	log.Info().Str("address", h.listener.Addr().String()).Msg("starting health server")
	return h.server.Serve(h.listener)
}

// Stop gracefully shuts the health server down.
func (h *HealthServer) Stop() {
	h.server.GracefulStop()
}

// SetCanServe flips both the overall and per-service status, called
// whenever the owning node's leader/follower readiness changes (e.g. on
// ActionStepDownSelf, processWinElection, or losing contact with a
// majority of voters).
func (h *HealthServer) SetCanServe(serviceName string, canServe bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if canServe {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(serviceName, status)
}

// Check is a convenience direct call, useful from tests without dialing
// the network listener.
func (h *HealthServer) Check(ctx context.Context, serviceName string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.Status, nil
}
