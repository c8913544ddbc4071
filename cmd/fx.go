package cmd

import (
	"log/slog"

	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/infra/scheduler"
	grpcsrv "github.com/webitel/notification-relay/infra/server/grpc"
	httpsrv "github.com/webitel/notification-relay/infra/server/http"
	"github.com/webitel/notification-relay/internal/adapter/emitter"
	"github.com/webitel/notification-relay/internal/adapter/pubsub"
	"github.com/webitel/notification-relay/internal/domain/registry"
	amqpdi "github.com/webitel/notification-relay/internal/handler/amqp"
	grpchandler "github.com/webitel/notification-relay/internal/handler/grpc"
	httphandler "github.com/webitel/notification-relay/internal/handler/http"
	"github.com/webitel/notification-relay/internal/handler/lp"
	"github.com/webitel/notification-relay/internal/handler/ws"
	"github.com/webitel/notification-relay/internal/service"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config, level *slog.LevelVar, watcher *config.Watcher) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			func() *slog.LevelVar { return level },
			ProvideTelemetry,
			ProvideLogger,
			ProvideWatermillLogger,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
		fx.Invoke(func(logger *slog.Logger) {
			if watcher != nil {
				watcher.Start(logger.With("component", "config"))
			}
		}),

		// [ORDER] Stop hooks run in reverse of construction. Transports depend on the
		// registry, so it closes the remaining connections after they are down.
		registry.Module,
		scheduler.Module,
		emitter.Module,
		pubsub.Module,
		service.Module,
		httpsrv.Module,
		grpcsrv.Module,
		grpchandler.Module,
		httphandler.Module,
		ws.Module,
		lp.Module,
		amqpdi.Module,
	)
}
