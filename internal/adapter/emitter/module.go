package emitter

import (
	"log/slog"

	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/internal/domain/registry"
	"github.com/webitel/notification-relay/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("emitter",
	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config, hub registry.Hubber, logger *slog.Logger) *ConnEmitter {
				return New(hub, cfg.WS.SendTimeout, cfg.Dispatch.EmitConcurrency, logger.With("component", "emitter"))
			},
			fx.As(new(service.Emitter)),
		),
	),
)
