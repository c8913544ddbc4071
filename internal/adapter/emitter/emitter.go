// Package emitter pushes events onto registry connection handles.
package emitter

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/webitel/notification-relay/internal/domain/event"
	"github.com/webitel/notification-relay/internal/domain/registry"
	"github.com/webitel/notification-relay/internal/service"
	"golang.org/x/sync/errgroup"
)

// Interface guard
var _ service.Emitter = (*ConnEmitter)(nil)

// ConnEmitter delivers through Connector.Send. A slow consumer costs at most one send
// timeout per emission, and emissions to distinct connections run in parallel.
type ConnEmitter struct {
	hub         registry.Hubber
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

func New(hub registry.Hubber, timeout time.Duration, concurrency int, logger *slog.Logger) *ConnEmitter {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ConnEmitter{
		hub:         hub,
		timeout:     timeout,
		concurrency: concurrency,
		logger:      logger,
	}
}

func (e *ConnEmitter) Emit(conn registry.Connector, ev event.Eventer) bool {
	if conn.Send(ev, e.timeout) {
		return true
	}
	e.logger.Debug("EVENT_NOT_ACCEPTED",
		"conn_id", conn.GetID(),
		"tenant_key", conn.GetTenantKey(),
		"event", ev.GetName(),
	)
	return false
}

func (e *ConnEmitter) EmitAll(conns []registry.Connector, ev event.Eventer) int {
	switch len(conns) {
	case 0:
		return 0
	case 1:
		if e.Emit(conns[0], ev) {
			return 1
		}
		return 0
	}

	var accepted atomic.Int64
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, conn := range conns {
		g.Go(func() error {
			if e.Emit(conn, ev) {
				accepted.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(accepted.Load())
}

func (e *ConnEmitter) BroadcastEmit(ev event.Eventer) int {
	return e.EmitAll(e.hub.Live(), ev)
}
