package amqp

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/notification-relay/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		NewMessageHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(h *MessageHandler, router *message.Router, provider *pubsub.Provider) error {
		return h.RegisterHandlers(router, provider)
	}),
)
