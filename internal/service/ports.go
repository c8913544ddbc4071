package service

import (
	"context"

	"github.com/webitel/notification-relay/internal/domain/event"
	"github.com/webitel/notification-relay/internal/domain/model"
	"github.com/webitel/notification-relay/internal/domain/registry"
)

// Emitter pushes events onto connection handles. Implementations never block on a slow
// consumer beyond the configured send timeout.
type Emitter interface {
	// Emit reports whether conn accepted ev.
	Emit(conn registry.Connector, ev event.Eventer) bool
	// EmitAll fans ev out to conns and returns how many accepted it.
	EmitAll(conns []registry.Connector, ev event.Eventer) int
	// BroadcastEmit targets every live connection, registered or not.
	BroadcastEmit(ev event.Eventer) int
}

// Auditor records executed dispatches for downstream consumers. A failing auditor never
// fails the dispatch itself.
type Auditor interface {
	Audit(ctx context.Context, res *model.DispatchResult) error
}
