package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/internal/domain/event"
	"github.com/webitel/notification-relay/internal/domain/model"
	"github.com/webitel/notification-relay/internal/domain/registry"
)

// Interface guard
var _ Presencer = (*PresenceService)(nil)

// [PRESENCE_SERVICE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS (Websocket/Long-poll)
type Presencer interface {
	// Connect opens a handle for a freshly accepted transport. The handle is live but
	// belongs to no tenant until Register succeeds.
	Connect(ctx context.Context, meta registry.ConnectMetadata) registry.Connector
	// Register associates conn with the tenant key carried by raw and acknowledges it.
	// Malformed keys are ignored and reported as false.
	Register(conn registry.Connector, raw any) bool
	Disconnect(conn registry.Connector)
	// Subscribe is Connect plus Register for transports without a register message.
	Subscribe(ctx context.Context, raw any, meta registry.ConnectMetadata) (registry.Connector, error)
	Snapshot() map[string]int
	Stats() model.HubStats
}

type PresenceService struct {
	hub        registry.Hubber
	emitter    Emitter
	bufferSize int
	logger     *slog.Logger
}

// NewPresenceService returns a production-ready instance of the service.
func NewPresenceService(cfg *config.Config, hub registry.Hubber, emitter Emitter, logger *slog.Logger) *PresenceService {
	return &PresenceService{
		hub:        hub,
		emitter:    emitter,
		bufferSize: cfg.WS.SendBuffer,
		logger:     logger.With("component", "presence"),
	}
}

// [CONNECT] HANDLES CONNECTION LIFECYCLE INITIATION
func (s *PresenceService) Connect(ctx context.Context, meta registry.ConnectMetadata) registry.Connector {
	conn := registry.NewConnector(ctx, s.bufferSize, meta)
	s.hub.Connect(conn)

	s.logger.Debug("CONNECTION_OPENED",
		"conn_id", conn.GetID(),
		"transport", meta.Transport,
		"remote_ip", meta.RemoteIP,
	)
	return conn
}

func (s *PresenceService) Register(conn registry.Connector, raw any) bool {
	key, ok := model.NormalizeTenantKey(raw)
	if !ok {
		// [SILENT_IGNORE] Clients get no error frame for a malformed register request.
		s.logger.Debug("REGISTER_IGNORED", "conn_id", conn.GetID(), "raw", fmt.Sprint(raw))
		return false
	}
	if !s.hub.Register(conn, key) {
		return false
	}

	s.emitter.Emit(conn, event.NewRegisteredEvent(key))
	s.logger.Info("TENANT_REGISTERED", "tenant_key", key, "conn_id", conn.GetID())
	return true
}

// [DISCONNECT] Deregister first so no dispatch can pick the handle up after Close.
func (s *PresenceService) Disconnect(conn registry.Connector) {
	key, remaining := s.hub.Deregister(conn)
	conn.Close()

	if key == "" {
		s.logger.Debug("CONNECTION_CLOSED", "conn_id", conn.GetID())
		return
	}
	s.logger.Info("TENANT_CONNECTION_CLOSED",
		"tenant_key", key,
		"conn_id", conn.GetID(),
		"remaining", remaining,
		"dropped", conn.Dropped(),
		"session", time.Since(conn.ConnectedAt()).Round(time.Millisecond).String(),
	)
}

func (s *PresenceService) Subscribe(ctx context.Context, raw any, meta registry.ConnectMetadata) (registry.Connector, error) {
	key, ok := model.NormalizeTenantKey(raw)
	if !ok {
		return nil, fmt.Errorf("subscribe: %w", model.ErrInvalidTenantKey)
	}

	conn := s.Connect(ctx, meta)
	if !s.hub.Register(conn, key) {
		s.Disconnect(conn)
		return nil, fmt.Errorf("subscribe %s: %w", key, model.ErrInvalidTenantKey)
	}
	return conn, nil
}

func (s *PresenceService) Snapshot() map[string]int { return s.hub.Snapshot() }

func (s *PresenceService) Stats() model.HubStats { return s.hub.Stats() }
