package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, wl watermill.LoggerAdapter) *Provider {
			p := NewProvider(cfg, wl)
			if p.Local() {
				logger.Warn("AMQP_DISABLED: using in-process pubsub")
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error { return p.Close() },
			})
			return p
		},
		func(p *Provider) (message.Publisher, error) { return p.BuildPublisher() },
		func(cfg *config.Config, pub message.Publisher, logger *slog.Logger) EventDispatcher {
			return NewEventDispatcher(pub, cfg.AMQP.AuditTopic, DefaultBreakerSettings, logger.With("component", "audit"))
		},
		func(d EventDispatcher) service.Auditor { return d },
	),
)
