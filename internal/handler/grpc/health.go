package grpc

import (
	"context"
	"log/slog"
	"time"

	grpcsrv "github.com/webitel/notification-relay/infra/server/grpc"
	"github.com/webitel/notification-relay/internal/service"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health service names reported next to the overall "" status.
const (
	PresenceServiceName = "notification.relay.Presence"
	DispatchServiceName = "notification.relay.Dispatch"
)

// HealthReporter publishes relay component status through the gRPC health service.
type HealthReporter struct {
	server   *grpcsrv.Server
	presence service.Presencer
	logger   *slog.Logger
}

func NewHealthReporter(server *grpcsrv.Server, presence service.Presencer, logger *slog.Logger) *HealthReporter {
	return &HealthReporter{
		server:   server,
		presence: presence,
		logger:   logger.With("component", "grpc-health"),
	}
}

func (r *HealthReporter) Start(context.Context) error {
	r.set(healthpb.HealthCheckResponse_SERVING)

	st := r.presence.Stats()
	r.logger.Info("RELAY_SERVING",
		"shards", len(st.Shards),
		"uptime", st.Uptime.Round(time.Millisecond).String(),
	)
	return nil
}

// Stop runs before the registry closes its connections, so probes see NOT_SERVING
// while clients are still being let go.
func (r *HealthReporter) Stop(context.Context) error {
	r.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return nil
}

func (r *HealthReporter) set(status healthpb.HealthCheckResponse_ServingStatus) {
	for _, name := range []string{PresenceServiceName, DispatchServiceName} {
		r.server.Health.SetServingStatus(name, status)
	}
}
