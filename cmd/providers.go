package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/infra/telemetry"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.uber.org/fx"
)

// ProvideTelemetry installs OpenTelemetry providers and flushes them on stop.
func ProvideTelemetry(lc fx.Lifecycle, cfg *config.Config) (*telemetry.Telemetry, error) {
	tel, err := telemetry.Setup(context.Background(), cfg.OTel, version)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: tel.Shutdown})
	return tel, nil
}

// ProvideLogger builds the process logger. The level is shared with the config watcher,
// so a reloaded file changes verbosity without a restart.
func ProvideLogger(cfg *config.Config, level *slog.LevelVar, tel *telemetry.Telemetry) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.JSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	if tel.LoggerProvider != nil {
		handler = &fanoutHandler{
			level: level,
			handlers: []slog.Handler{
				handler,
				otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(tel.LoggerProvider)),
			},
		}
	}

	logger := slog.New(handler).With(
		"service", ServiceName,
		"namespace", ServiceNamespace,
	)
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With("component", "watermill"))
}

// fanoutHandler writes every record to stdout and the OTLP bridge.
type fanoutHandler struct {
	level    slog.Leveler
	handlers []slog.Handler
}

func (f *fanoutHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= f.level.Level()
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanoutHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := &fanoutHandler{level: f.level, handlers: make([]slog.Handler, len(f.handlers))}
	for i, h := range f.handlers {
		next.handlers[i] = fn(h)
	}
	return next
}
