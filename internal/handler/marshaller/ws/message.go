package wsmarshaller

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Inbound event names.
const (
	ClientEventRegister = "register"
)

// ClientMessage is a frame sent by the client: {"event":"register","payload":42}.
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func UnmarshallClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("ws: malformed client frame: %w", err)
	}
	return &msg, nil
}

// Value decodes the payload into a plain Go value. Numbers stay json.Number so large
// company ids keep their exact digits.
func (m *ClientMessage) Value() any {
	if len(m.Payload) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(m.Payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
