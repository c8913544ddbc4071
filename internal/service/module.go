package service

import (
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			NewPresenceService,
			fx.As(new(Presencer)),
		),
		fx.Annotate(
			NewDispatchService,
			fx.As(new(Dispatcher)),
		),
	),

	// [DECORATION_LAYER] Intercept Dispatcher to add cross-cutting concerns
	fx.Decorate(func(orig Dispatcher, logger *slog.Logger) (Dispatcher, error) {
		return NewDispatcherMiddleware(orig, logger.With("component", "dispatch"))
	}),
)
