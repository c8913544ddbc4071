package httphandler

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
)

var Module = fx.Module("http-handler",
	fx.Provide(NewHandler),
	fx.Invoke(func(r chi.Router, h *Handler) {
		h.Routes(r)
	}),
)
