package wsmarshaller

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/notification-relay/internal/domain/event"
	"github.com/webitel/notification-relay/internal/domain/model"
)

func TestMarshallDeliveryEvent(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := event.NewNotificationEvent(&model.Notification{
		Type:         model.TypeForApproval,
		Title:        "T",
		Message:      "M",
		Category:     "Update",
		DispatchedAt: at,
	})

	data, err := MarshallDeliveryEvent(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "receive-notification", got["event"])
	assert.Equal(t, ev.GetID(), got["id"])

	payload := got["payload"].(map[string]any)
	assert.Equal(t, "for_approval", payload["type"])
	assert.Equal(t, "2026-01-02T03:04:05Z", payload["dispatchedAt"])

	again, err := MarshallDeliveryEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, &data[0], &again[0], "second call reuses the cached frame")
}

func TestClientMessage_Value(t *testing.T) {
	msg, err := UnmarshallClientMessage([]byte(`{"event":"register","payload":9007199254740993}`))
	require.NoError(t, err)
	assert.Equal(t, ClientEventRegister, msg.Event)
	assert.Equal(t, json.Number("9007199254740993"), msg.Value())

	msg, err = UnmarshallClientMessage([]byte(`{"event":"register"}`))
	require.NoError(t, err)
	assert.Nil(t, msg.Value())

	_, err = UnmarshallClientMessage([]byte(`{`))
	assert.Error(t, err)
}
