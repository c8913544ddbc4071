package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/internal/adapter/pubsub"
	"github.com/webitel/notification-relay/internal/service"
	"go.uber.org/fx"
)

const (
	HandlerDispatch  = "ON_DISPATCH_REQUESTED"
	HandlerBroadcast = "ON_BROADCAST_REQUESTED"
)

type MessageHandler struct {
	cfg        config.AMQPConfig
	dispatcher service.Dispatcher
	events     pubsub.EventDispatcher
	logger     *slog.Logger
	wlogger    watermill.LoggerAdapter

	// [NODE_IDENTITY] Registries are per process, so every node consumes its own copy.
	nodeID string
}

func NewMessageHandler(
	cfg *config.Config,
	dispatcher service.Dispatcher,
	events pubsub.EventDispatcher,
	logger *slog.Logger,
	wlogger watermill.LoggerAdapter,
) *MessageHandler {
	return &MessageHandler{
		cfg:        cfg.AMQP,
		dispatcher: dispatcher,
		events:     events,
		logger:     logger.With("component", "amqp"),
		wlogger:    wlogger,
		nodeID:     uuid.NewString()[:8],
	}
}

// [REGISTRATION_PIPELINE]
func (h *MessageHandler) RegisterHandlers(router *message.Router, provider *pubsub.Provider) error {
	poison, err := middleware.PoisonQueue(h.events.Publisher(), h.cfg.PoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{HandlerDispatch, h.cfg.DispatchTopic, Bind(h, h.OnDispatchRequestedV1)},
		{HandlerBroadcast, h.cfg.BroadcastTopic, Bind(h, h.OnBroadcastRequestedV1)},
	}

	for _, c := range configs {
		// [UNIQUE_HANDLER_QUEUE]
		// Format: notifications.dispatch.v1_b23a8f12.ON_DISPATCH_REQUESTED (exclusive, auto-delete)
		sub, err := provider.BuildSubscriber(fmt.Sprintf("%s.%s", h.nodeID, c.name))
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			poison,
			NewRetryMiddleware(h.wlogger).Middleware,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("AMQP_PIPELINE_READY",
		"node_id", h.nodeID,
		"dispatch_topic", h.cfg.DispatchTopic,
		"broadcast_topic", h.cfg.BroadcastTopic,
	)
	return nil
}

// NewWatermillRouter builds the router and ties Run/Close to the application lifecycle.
func NewWatermillRouter(lc fx.Lifecycle, logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("watermill router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("ROUTER_STOPPED", err, nil)
				}
			}()
			select {
			case <-router.Running():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})
	return router, nil
}
