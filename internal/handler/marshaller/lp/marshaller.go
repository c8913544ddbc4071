package lpmarshaller

import (
	"encoding/json"

	"github.com/webitel/notification-relay/internal/domain/event"
)

// LPEvent represents a single event structured for long-polling consumers.
type LPEvent struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// Response defines the top-level JSON array to support event batching.
type Response struct {
	Events []LPEvent `json:"events"`
}

// MarshallEvents converts a slice of domain events into a single JSON batch.
func MarshallEvents(events []event.Eventer) ([]byte, error) {
	res := Response{
		Events: make([]LPEvent, 0, len(events)),
	}

	for _, ev := range events {
		res.Events = append(res.Events, LPEvent{
			Type:    ev.GetName(),
			ID:      ev.GetID(),
			SentAt:  ev.GetOccurredAt(),
			Payload: ev.GetPayload(),
		})
	}

	return json.Marshal(res)
}
