package scheduler

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(
		func(logger *slog.Logger) *TimerScheduler {
			return New(logger.With("component", "scheduler"))
		},
		func(s *TimerScheduler) Scheduler { return s },
	),
	fx.Invoke(func(lc fx.Lifecycle, s Scheduler) {
		lc.Append(fx.Hook{
			// [DRAIN] Deferred notifications already accepted still get their attempt.
			OnStop: func(ctx context.Context) error {
				return s.Stop(ctx)
			},
		})
	}),
)
