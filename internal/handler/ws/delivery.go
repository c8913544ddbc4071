package ws

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/internal/domain/registry"
	wsmarshaller "github.com/webitel/notification-relay/internal/handler/marshaller/ws"
	"github.com/webitel/notification-relay/internal/service"
)

type WSHandler struct {
	logger   *slog.Logger
	presence service.Presencer
	cfg      config.WSConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(cfg *config.Config, logger *slog.Logger, presence service.Presencer) *WSHandler {
	return &WSHandler{
		logger:   logger.With("component", "ws"),
		presence: presence,
		cfg:      cfg.WS,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(cfg.HTTP.AllowedOrigins),
		},
	}
}

// originChecker allows any origin when the list contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WS_UPGRADE_FAILED", "err", err, "remote_ip", r.RemoteAddr)
		return
	}

	// 2. OPEN A HANDLE. It is live immediately; the tenant binding arrives later as a
	// "register" frame.
	conn := h.presence.Connect(r.Context(), registry.ConnectMetadata{
		Transport: "ws",
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	defer h.presence.Disconnect(conn)

	// 3. PUMPS. The read side only ever closes the handle; the write side owns the socket.
	go h.readPump(ws, conn)
	h.writePump(ws, conn)
}

func (h *WSHandler) readPump(ws *websocket.Conn, conn registry.Connector) {
	defer conn.Close()

	ws.SetReadLimit(h.cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WS_READ_FAILED", "conn_id", conn.GetID(), "err", err)
			}
			return
		}

		msg, err := wsmarshaller.UnmarshallClientMessage(data)
		if err != nil {
			h.logger.Debug("WS_FRAME_IGNORED", "conn_id", conn.GetID(), "err", err)
			continue
		}

		switch msg.Event {
		case wsmarshaller.ClientEventRegister:
			h.presence.Register(conn, msg.Value())
		default:
			h.logger.Debug("WS_EVENT_UNKNOWN", "conn_id", conn.GetID(), "event", msg.Event)
		}
	}
}

// [MAIN WS PUMP LOOP]
func (h *WSHandler) writePump(ws *websocket.Conn, conn registry.Connector) {
	ticker := time.NewTicker(h.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case <-conn.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(h.cfg.WriteWait))
			return

		case <-conn.Ready():
			if err := h.flush(ws, conn); err != nil {
				h.logger.Debug("WS_SEND_FAILED", "conn_id", conn.GetID(), "err", err)
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush writes every queued event in order.
func (h *WSHandler) flush(ws *websocket.Conn, conn registry.Connector) error {
	for {
		ev, ok := conn.Next()
		if !ok {
			return nil
		}

		data, err := wsmarshaller.MarshallDeliveryEvent(ev)
		if err != nil {
			h.logger.Error("WS_MARSHAL_FAILED", "err", err, "event", ev.GetName())
			continue
		}

		_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
	}
}
