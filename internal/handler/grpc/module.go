package grpc

import (
	"go.uber.org/fx"
)

var Module = fx.Module("relay-grpc",
	fx.Provide(
		NewHealthReporter,
	),
	fx.Invoke(func(lc fx.Lifecycle, r *HealthReporter) {
		lc.Append(fx.StartStopHook(r.Start, r.Stop))
	}),
)
