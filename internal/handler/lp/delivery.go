package lp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/internal/domain/event"
	"github.com/webitel/notification-relay/internal/domain/model"
	"github.com/webitel/notification-relay/internal/domain/registry"
	lpmarshaller "github.com/webitel/notification-relay/internal/handler/marshaller/lp"
	"github.com/webitel/notification-relay/internal/service"
)

type LPHandler struct {
	presence service.Presencer
	cfg      config.LPConfig
	logger   *slog.Logger
}

func NewLPHandler(cfg *config.Config, presence service.Presencer, logger *slog.Logger) *LPHandler {
	return &LPHandler{
		presence: presence,
		cfg:      cfg.LP,
		logger:   logger.With("component", "lp"),
	}
}

// Poll handles the long-polling request.
// It holds the connection until an event arrives or timeout occurs.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	// 1. Temporary Subscription.
	// The connector is registered under the company id for the duration of this request.
	conn, err := h.presence.Subscribe(r.Context(), chi.URLParam(r, "companyID"), registry.ConnectMetadata{
		Transport: "lp",
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrInvalidTenantKey) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	// Ensure cleanup: remove from registry when request finishes.
	defer h.presence.Disconnect(conn)

	var events []event.Eventer

	timer := time.NewTimer(h.cfg.PollTimeout)
	defer timer.Stop()

	// 2. Wait for data or timeout.
	select {
	case <-r.Context().Done():
		// Client disconnected.
		return

	case <-conn.Done():
		w.WriteHeader(http.StatusNoContent)
		return

	case <-timer.C:
		// Standard Long-Polling timeout to prevent hanging connections.
		w.WriteHeader(http.StatusNoContent)
		return

	case <-conn.Ready():
		// Drain the queue to provide batching.
		// This minimizes the number of subsequent HTTP requests.
		for len(events) < h.cfg.MaxBatch {
			ev, ok := conn.Next()
			if !ok {
				break
			}
			events = append(events, ev)
		}
		if len(events) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	// 3. Final transmission.
	data, err := lpmarshaller.MarshallEvents(events)
	if err != nil {
		h.logger.Error("LP_MARSHAL_FAILED", "err", err)
		writeError(w, http.StatusInternalServerError, "marshal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}
