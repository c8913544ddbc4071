package registry

import (
	"context"
	"log/slog"

	"github.com/webitel/notification-relay/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Hub using Functional Options
		func(cfg *config.Config, logger *slog.Logger) *Hub {
			return NewHub(
				WithShards(cfg.Registry.Shards),
				WithLogger(logger.With("component", "registry")),
			)
		},
		func(h *Hub) Hubber { return h },
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // [GRACEFUL_SHUTDOWN] Release every live transport
				return nil
			},
		})
	}),
)
