package ws

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
)

const Path = "/ws"

var Module = fx.Module("ws-handler",
	fx.Provide(NewWSHandler),
	fx.Invoke(func(r chi.Router, h *WSHandler) {
		r.Get(Path, h.ServeHTTP)
	}),
)
