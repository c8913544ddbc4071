// Package httphandler exposes the dispatch engine and registry diagnostics over HTTP.
package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/notification-relay/internal/domain/model"
	"github.com/webitel/notification-relay/internal/service"
	"github.com/webitel/notification-relay/internal/service/dto"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	dispatcher service.Dispatcher
	presence   service.Presencer
	logger     *slog.Logger
}

func NewHandler(dispatcher service.Dispatcher, presence service.Presencer, logger *slog.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		presence:   presence,
		logger:     logger.With("component", "http"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/send-notification", h.SendNotification)
	r.Post("/broadcast", h.Broadcast)
	r.Get("/ping", h.Ping)
	r.Get("/stats", h.Stats)
	r.Get("/dispatches/{id}", h.Outcome)
}

type dispatchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*model.DispatchResult
}

type broadcastResponse struct {
	Message string `json:"message"`
	*model.BroadcastResult
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type pingResponse struct {
	Status           string `json:"status"`
	ConnectedSockets int    `json:"connectedSockets"`
}

type statsResponse struct {
	TotalTenants     int              `json:"totalTenants"`
	TotalConnections int              `json:"totalConnections"`
	LiveConnections  int              `json:"liveConnections"`
	UptimeSeconds    int64            `json:"uptimeSeconds"`
	Tenants          map[string]int   `json:"tenants"`
	Shards           []shardStatsView `json:"shards"`
	Transports       map[string]int   `json:"transports"`
	OldestSeconds    int64            `json:"oldestConnectionSeconds"`
}

type shardStatsView struct {
	ShardID     int `json:"shardId"`
	TenantCount int `json:"tenantCount"`
	Connections int `json:"connections"`
}

func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var body dto.SendNotificationV1
	if err := decode(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	req, rejected, err := body.ToDomain()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}
	if len(rejected) > 0 {
		h.logger.Warn("TARGET_KEYS_DROPPED", "rejected", rejected)
	}

	res, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		status, msg := mapError(err, req)
		writeJSON(w, status, errorResponse{Message: msg})
		return
	}

	msg := "Notification dispatch complete."
	if res.Scheduled {
		msg = "Notification dispatch scheduled."
	}
	writeJSON(w, http.StatusOK, dispatchResponse{Success: true, Message: msg, DispatchResult: res})
}

func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var body dto.BroadcastV1
	if err := decode(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	res := h.dispatcher.Broadcast(r.Context(), body.ToDomain())
	writeJSON(w, http.StatusOK, broadcastResponse{
		Message:         "Broadcast delivered to all clients.",
		BroadcastResult: res,
	})
}

// Ping counts registered connections, the same figure the registry snapshot reports.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	total := 0
	for _, n := range h.presence.Snapshot() {
		total += n
	}
	writeJSON(w, http.StatusOK, pingResponse{Status: "OK", ConnectedSockets: total})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st := h.presence.Stats()

	res := statsResponse{
		TotalTenants:     st.TotalTenants,
		TotalConnections: st.TotalConnections,
		LiveConnections:  st.LiveConnections,
		UptimeSeconds:    int64(st.Uptime.Seconds()),
		Tenants:          st.Tenants,
		Shards:           make([]shardStatsView, 0, len(st.Shards)),
		Transports:       st.Transports,
		OldestSeconds:    int64(st.OldestConnectionAge.Seconds()),
	}
	for _, s := range st.Shards {
		res.Shards = append(res.Shards, shardStatsView(s))
	}
	writeJSON(w, http.StatusOK, res)
}

// Outcome reports an executed dispatch. Deferred dispatches are unknown until they fire.
func (h *Handler) Outcome(w http.ResponseWriter, r *http.Request) {
	res, ok := h.dispatcher.Outcome(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "dispatch not found"})
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{Success: true, Message: "Notification dispatch complete.", DispatchResult: res})
}

func mapError(err error, req *model.DispatchRequest) (int, string) {
	switch {
	case errors.Is(err, model.ErrUnknownNotificationType):
		return http.StatusBadRequest, fmt.Sprintf("Unknown notification type: %q.", string(req.Type))
	case errors.Is(err, model.ErrMissingTargetKeys), errors.Is(err, model.ErrInvalidDelay):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusServiceUnavailable, err.Error()
	}
}

// decode treats an empty body as an empty object.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
