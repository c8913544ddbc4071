package wsmarshaller

import (
	"encoding/json"

	"github.com/webitel/notification-relay/internal/domain/event"
)

// WSEvent is a generic wrapper for WebSocket messages to provide consistent structure
type WSEvent struct {
	Event   string `json:"event"` // e.g., "receive-notification", "registered"
	ID      string `json:"id"`
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// MarshallDeliveryEvent prepares data for WebSocket transmission.
// The encoded frame is cached on the event: one dispatch writes the same bytes to every
// connection it reaches.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	if cached, ok := ev.GetCached().([]byte); ok {
		return cached, nil
	}

	data, err := json.Marshal(&WSEvent{
		Event:   ev.GetName(),
		ID:      ev.GetID(),
		SentAt:  ev.GetOccurredAt(),
		Payload: ev.GetPayload(),
	})
	if err != nil {
		return nil, err
	}

	ev.SetCached(data)
	return data, nil
}
