package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/notification-relay/internal/domain/event"
	"github.com/webitel/notification-relay/internal/domain/model"
	"github.com/webitel/notification-relay/internal/domain/registry"
)

func TestPresence_RegisterAcknowledges(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.presence.Connect(context.Background(), registry.ConnectMetadata{Transport: "ws"})

	require.True(t, f.presence.Register(conn, json.Number("42")))

	evs := drain(conn)
	require.Len(t, evs, 1)
	assert.Equal(t, event.NameRegistered, evs[0].GetName())
	assert.Equal(t, &model.Registered{CompanyID: "42"}, evs[0].GetPayload())
	assert.Equal(t, map[string]int{"42": 1}, f.presence.Snapshot())
}

func TestPresence_RegisterIgnoresMalformedKeys(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.presence.Connect(context.Background(), registry.ConnectMetadata{})

	for _, raw := range []any{nil, "", "   ", map[string]any{"id": 1}} {
		assert.False(t, f.presence.Register(conn, raw))
	}
	assert.Empty(t, drain(conn))
	assert.Empty(t, f.presence.Snapshot())
	assert.Equal(t, 1, f.presence.Stats().LiveConnections)
}

func TestPresence_NumericAndStringKeysCollide(t *testing.T) {
	f := newFixture(t, nil)
	a := f.presence.Connect(context.Background(), registry.ConnectMetadata{})
	b := f.presence.Connect(context.Background(), registry.ConnectMetadata{})

	require.True(t, f.presence.Register(a, float64(7)))
	require.True(t, f.presence.Register(b, "7"))

	assert.Equal(t, map[string]int{"7": 2}, f.presence.Snapshot())
}

func TestPresence_DisconnectRemovesEntry(t *testing.T) {
	f := newFixture(t, nil)
	conn := f.tenant(t, "A")

	f.presence.Disconnect(conn)

	assert.Empty(t, f.presence.Snapshot())
	assert.Zero(t, f.presence.Stats().LiveConnections)
	select {
	case <-conn.Done():
	default:
		t.Fatal("connection not closed")
	}

	// repeated disconnect is a no-op
	f.presence.Disconnect(conn)
	assert.False(t, f.presence.Register(conn, "A"))
}

func TestPresence_SubscribeRegistersWithoutAck(t *testing.T) {
	f := newFixture(t, nil)

	conn, err := f.presence.Subscribe(context.Background(), "A", registry.ConnectMetadata{Transport: "lp"})
	require.NoError(t, err)

	assert.Equal(t, "A", conn.GetTenantKey())
	assert.Empty(t, drain(conn))
	assert.Equal(t, map[string]int{"A": 1}, f.presence.Snapshot())

	_, err = f.presence.Subscribe(context.Background(), " ", registry.ConnectMetadata{})
	assert.ErrorIs(t, err, model.ErrInvalidTenantKey)
}
