package httpsrv

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
)

var Module = fx.Module("http-server",
	fx.Provide(
		NewServer,
		func(s *Server) chi.Router { return s.Router() },
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.StartStopHook(s.Start, s.Stop))
	}),
)
