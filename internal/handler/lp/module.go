package lp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
)

var Module = fx.Module("lp-handler",
	fx.Provide(NewLPHandler),
	fx.Invoke(func(r chi.Router, h *LPHandler) {
		r.Get("/poll/{companyID}", h.Poll)
	}),
)
