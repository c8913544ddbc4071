// Package grpcsrv serves the standard gRPC health and reflection services.
package grpcsrv

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/infra/server/grpc/interceptors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type Server struct {
	*grpc.Server
	Health *health.Server

	addr     string
	listener net.Listener
	logger   *slog.Logger
}

func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	logger = logger.With("component", "grpc-server")

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.Unary(logger)...),
		grpc.ChainStreamInterceptor(interceptors.Stream(logger)...),
	)

	hs := health.NewServer()
	// Overall status stays NOT_SERVING until Start.
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	if cfg.GRPC.Reflection {
		reflection.Register(s)
	}

	return &Server{
		Server: s,
		Health: hs,
		addr:   cfg.GRPC.Addr,
		logger: logger,
	}
}

func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc server: listen %s: %w", s.addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.Serve(ln); err != nil {
			s.logger.Error("GRPC_SERVER_FAILED", "err", err)
		}
	}()

	s.Health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("GRPC_SERVER_STARTED", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop flips every health status to NOT_SERVING before draining so load balancers stop
// routing first. Falls back to a hard stop when ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.Health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.Server.Stop()
		return ctx.Err()
	}
}
