package grpcsrv

import (
	"go.uber.org/fx"
)

var Module = fx.Module("grpc-server",
	fx.Provide(NewServer),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.StartStopHook(s.Start, s.Stop))
	}),
)
