package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/infra/scheduler"
	"github.com/webitel/notification-relay/internal/domain/event"
	"github.com/webitel/notification-relay/internal/domain/model"
	"github.com/webitel/notification-relay/internal/domain/registry"
)

// Interface guard
var _ Dispatcher = (*DispatchService)(nil)

// Dispatcher is the entry point shared by every ingress (HTTP, AMQP).
type Dispatcher interface {
	// Dispatch validates req and delivers it now, or schedules it when a delay applies.
	// A scheduled dispatch returns an acknowledgement with empty outcome lists; the real
	// outcome becomes available through Outcome once the delay elapses.
	Dispatch(ctx context.Context, req *model.DispatchRequest) (*model.DispatchResult, error)
	Broadcast(ctx context.Context, req *model.BroadcastRequest) *model.BroadcastResult
	Outcome(id string) (*model.DispatchResult, bool)
}

type DispatchService struct {
	hub       registry.Hubber
	emitter   Emitter
	scheduler scheduler.Scheduler
	auditor   Auditor
	outcomes  *lru.Cache[string, *model.DispatchResult]
	cfg       config.DispatchConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewDispatchService(
	cfg *config.Config,
	hub registry.Hubber,
	emitter Emitter,
	sched scheduler.Scheduler,
	auditor Auditor,
	logger *slog.Logger,
) (*DispatchService, error) {
	size := cfg.Dispatch.OutcomeCacheSize
	if size <= 0 {
		size = 1
	}
	outcomes, err := lru.New[string, *model.DispatchResult](size)
	if err != nil {
		return nil, fmt.Errorf("dispatch: outcome cache: %w", err)
	}

	return &DispatchService{
		hub:       hub,
		emitter:   emitter,
		scheduler: sched,
		auditor:   auditor,
		outcomes:  outcomes,
		cfg:       cfg.Dispatch,
		logger:    logger.With("component", "dispatch"),
		now:       time.Now,
	}, nil
}

func (s *DispatchService) Dispatch(ctx context.Context, in *model.DispatchRequest) (*model.DispatchResult, error) {
	req := *in
	if req.Category == "" {
		req.Category = s.cfg.DefaultCategory
	}
	if req.Delay == 0 {
		req.Delay = s.cfg.DefaultDelay
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.cfg.MaxDelay > 0 && req.Delay > s.cfg.MaxDelay {
		return nil, fmt.Errorf("%w: %s exceeds limit %s", model.ErrInvalidDelay, req.Delay, s.cfg.MaxDelay)
	}

	id := uuid.NewString()
	if req.Delay <= 0 {
		return s.execute(ctx, id, &req), nil
	}

	// [DEFERRED] Presence is evaluated when the timer fires, not now. The request context
	// ends with the caller, so the task runs on the scheduler's context.
	scheduledFor := s.now().Add(req.Delay)
	err := s.scheduler.Schedule(req.Delay, func(taskCtx context.Context) {
		s.execute(taskCtx, id, &req)
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: schedule: %w", id, err)
	}

	s.logger.Info("DISPATCH_SCHEDULED",
		"dispatch_id", id,
		"type", req.Type,
		"delay", req.Delay.String(),
	)
	return &model.DispatchResult{
		ID:           id,
		Type:         req.Type,
		Delivered:    []string{},
		Unreachable:  []string{},
		Scheduled:    true,
		ScheduledFor: scheduledFor,
	}, nil
}

// execute performs the presence check and emission. Every present tenant receives the
// same event instance, so its encoding is computed once.
func (s *DispatchService) execute(ctx context.Context, id string, req *model.DispatchRequest) *model.DispatchResult {
	now := s.now()
	ev := event.NewNotificationEvent(req.Payload(now))

	res := &model.DispatchResult{
		ID:           id,
		Type:         req.Type,
		Delivered:    []string{},
		Unreachable:  []string{},
		DispatchedAt: now,
	}

	var emitted int
	switch req.Type {
	case model.TypeAnnouncement:
		// [SNAPSHOT] One consistent registry view; tenants joining mid-dispatch are not seen.
		var conns []registry.Connector
		for _, tc := range s.hub.Tenants() {
			conns = append(conns, tc.Connections...)
			res.Delivered = append(res.Delivered, tc.TenantKey)
		}
		emitted = s.emitter.EmitAll(conns, ev)

	case model.TypeForApproval:
		seen := make(map[string]struct{}, len(req.TargetKeys))
		for _, key := range req.TargetKeys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			conns := s.hub.Lookup(key)
			if len(conns) == 0 {
				res.Unreachable = append(res.Unreachable, key)
				continue
			}
			emitted += s.emitter.EmitAll(conns, ev)
			res.Delivered = append(res.Delivered, key)
		}

		// [REFRESH] Every live connection re-fetches its pending counts, targeted or not.
		s.emitter.BroadcastEmit(event.NewRefreshCountsEvent(now))
	}

	s.outcomes.Add(id, res)

	s.logger.Info("DISPATCH_COMPLETED",
		"dispatch_id", id,
		"type", req.Type,
		"delivered", len(res.Delivered),
		"unreachable", len(res.Unreachable),
		"emitted", emitted,
	)

	if s.auditor != nil {
		if err := s.auditor.Audit(ctx, res); err != nil {
			s.logger.Warn("DISPATCH_AUDIT_FAILED", "dispatch_id", id, "err", err)
		}
	}
	return res
}

func (s *DispatchService) Broadcast(ctx context.Context, in *model.BroadcastRequest) *model.BroadcastResult {
	req := *in
	if req.Category == "" {
		req.Category = s.cfg.DefaultCategory
	}

	n := s.emitter.BroadcastEmit(event.NewNotificationEvent(req.Payload(s.now())))
	s.logger.Info("BROADCAST_COMPLETED", "connections", n)

	return &model.BroadcastResult{Success: true, Connections: n}
}

// Outcome returns the result of an executed dispatch while it is still cached.
func (s *DispatchService) Outcome(id string) (*model.DispatchResult, bool) {
	return s.outcomes.Get(id)
}
