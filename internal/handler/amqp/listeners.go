package amqp

import (
	"context"
	"errors"
	"fmt"

	"github.com/webitel/notification-relay/internal/domain/model"
	"github.com/webitel/notification-relay/internal/service/dto"
)

// [ON_DISPATCH_REQUESTED]
// Same semantics as POST /send-notification. Invalid requests are terminal and acked.
func (h *MessageHandler) OnDispatchRequestedV1(ctx context.Context, raw *dto.SendNotificationV1) error {
	req, rejected, err := raw.ToDomain()
	if err != nil {
		h.logger.Warn("DISPATCH_REQUEST_INVALID", "err", err, "trace_id", TraceID(ctx))
		return nil
	}
	if len(rejected) > 0 {
		h.logger.Warn("TARGET_KEYS_DROPPED", "rejected", rejected, "trace_id", TraceID(ctx))
	}

	res, err := h.dispatcher.Dispatch(ctx, req)
	if err != nil {
		if isInvalidRequest(err) {
			h.logger.Warn("DISPATCH_REQUEST_INVALID", "err", err, "trace_id", TraceID(ctx))
			return nil
		}
		// [ERROR_PROPAGATION] Returning error triggers Middleware logic.
		return fmt.Errorf("dispatch: %w", err)
	}

	h.logger.Debug("DISPATCH_REQUEST_HANDLED",
		"dispatch_id", res.ID,
		"scheduled", res.Scheduled,
		"trace_id", TraceID(ctx),
	)
	return nil
}

// [ON_BROADCAST_REQUESTED]
func (h *MessageHandler) OnBroadcastRequestedV1(ctx context.Context, raw *dto.BroadcastV1) error {
	res := h.dispatcher.Broadcast(ctx, raw.ToDomain())
	h.logger.Debug("BROADCAST_REQUEST_HANDLED", "connections", res.Connections, "trace_id", TraceID(ctx))
	return nil
}

func isInvalidRequest(err error) bool {
	return errors.Is(err, model.ErrUnknownNotificationType) ||
		errors.Is(err, model.ErrMissingTargetKeys) ||
		errors.Is(err, model.ErrInvalidDelay)
}
