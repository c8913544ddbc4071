package registry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(t *testing.T) Connector {
	t.Helper()
	conn := NewConnector(context.Background(), 8, ConnectMetadata{Transport: "test"})
	t.Cleanup(conn.Close)
	return conn
}

func assertNoEmptySets(t *testing.T, h *Hub) {
	t.Helper()
	for key, n := range h.Snapshot() {
		assert.Positive(t, n, "tenant %q is mapped to an empty set", key)
	}
}

func TestHub_RegisterAndLookup(t *testing.T) {
	h := NewHub(WithShards(4))
	c1 := newTestConn(t)
	h.Connect(c1)

	require.True(t, h.Register(c1, "A"))

	conns := h.Lookup("A")
	require.Len(t, conns, 1)
	assert.Equal(t, c1.GetID(), conns[0].GetID())
	assert.Equal(t, "A", c1.GetTenantKey())
	assert.Empty(t, h.Lookup("B"))
	assert.Equal(t, map[string]int{"A": 1}, h.Snapshot())
}

func TestHub_RegisterIsIdempotent(t *testing.T) {
	h := NewHub()
	c1 := newTestConn(t)

	require.True(t, h.Register(c1, "A"))
	require.True(t, h.Register(c1, "A"))

	assert.Len(t, h.Lookup("A"), 1)
	assert.Equal(t, 1, h.Snapshot()["A"])
}

func TestHub_RegisterRejectsEmptyKey(t *testing.T) {
	h := NewHub()
	c1 := newTestConn(t)

	assert.False(t, h.Register(c1, ""))
	assert.False(t, h.Register(nil, "A"))
	assert.Empty(t, h.Snapshot())
	assert.Empty(t, c1.GetTenantKey())
}

func TestHub_RegisterKeepsFirstBinding(t *testing.T) {
	h := NewHub()
	c1 := newTestConn(t)

	require.True(t, h.Register(c1, "A"))
	assert.False(t, h.Register(c1, "B"))

	assert.Equal(t, "A", c1.GetTenantKey())
	assert.Empty(t, h.Lookup("B"))
	assert.Equal(t, map[string]int{"A": 1}, h.Snapshot())
}

func TestHub_MultipleConnectionsPerTenant(t *testing.T) {
	h := NewHub()
	c1, c2 := newTestConn(t), newTestConn(t)

	require.True(t, h.Register(c1, "B"))
	require.True(t, h.Register(c2, "B"))
	assert.Len(t, h.Lookup("B"), 2)

	key, remaining := h.Deregister(c1)
	assert.Equal(t, "B", key)
	assert.Equal(t, 1, remaining)
	assert.Len(t, h.Lookup("B"), 1)
}

func TestHub_DeregisterLastConnectionRemovesTenant(t *testing.T) {
	h := NewHub()
	c1 := newTestConn(t)
	h.Connect(c1)
	require.True(t, h.Register(c1, "T"))

	key, remaining := h.Deregister(c1)
	assert.Equal(t, "T", key)
	assert.Zero(t, remaining)

	assert.Empty(t, h.Lookup("T"))
	_, present := h.Snapshot()["T"]
	assert.False(t, present)
	assert.Empty(t, h.Live())
}

func TestHub_DeregisterTwiceIsNoop(t *testing.T) {
	h := NewHub()
	c1, c2 := newTestConn(t), newTestConn(t)
	require.True(t, h.Register(c1, "T"))
	require.True(t, h.Register(c2, "T"))

	_, remaining := h.Deregister(c1)
	require.Equal(t, 1, remaining)

	key, remaining := h.Deregister(c1)
	assert.Empty(t, key)
	assert.Zero(t, remaining)
	assert.Len(t, h.Lookup("T"), 1, "second deregister must not touch the other connection")
}

func TestHub_DeregisterUnregisteredConnection(t *testing.T) {
	h := NewHub()
	c1 := newTestConn(t)
	h.Connect(c1)

	key, remaining := h.Deregister(c1)
	assert.Empty(t, key)
	assert.Zero(t, remaining)
	assert.Empty(t, h.Live())
}

func TestHub_RegisterAfterDeregisterIsRefused(t *testing.T) {
	h := NewHub()
	c1 := newTestConn(t)

	h.Deregister(c1)
	assert.False(t, h.Register(c1, "late"))
	assert.Empty(t, h.Snapshot())
}

func TestHub_LiveIncludesUnregistered(t *testing.T) {
	h := NewHub()
	c1, c2 := newTestConn(t), newTestConn(t)
	h.Connect(c1)
	h.Connect(c2)
	require.True(t, h.Register(c1, "A"))

	assert.Len(t, h.Live(), 2)
	assert.Equal(t, map[string]int{"A": 1}, h.Snapshot())
}

func TestHub_TenantsSortedCopy(t *testing.T) {
	h := NewHub(WithShards(3))
	for _, key := range []string{"c", "a", "b"} {
		require.True(t, h.Register(newTestConn(t), key))
	}

	tenants := h.Tenants()
	require.Len(t, tenants, 3)
	assert.Equal(t, "a", tenants[0].TenantKey)
	assert.Equal(t, "b", tenants[1].TenantKey)
	assert.Equal(t, "c", tenants[2].TenantKey)
	for _, tc := range tenants {
		assert.Len(t, tc.Connections, 1)
	}
}

func TestHub_Stats(t *testing.T) {
	h := NewHub(WithShards(2))
	c1, c2, c3 := newTestConn(t), newTestConn(t), newTestConn(t)
	for _, c := range []Connector{c1, c2, c3} {
		h.Connect(c)
	}
	require.True(t, h.Register(c1, "A"))
	require.True(t, h.Register(c2, "B"))
	require.True(t, h.Register(c3, "B"))

	stats := h.Stats()
	assert.Equal(t, 2, stats.TotalTenants)
	assert.Equal(t, 3, stats.TotalConnections)
	assert.Equal(t, 3, stats.LiveConnections)
	assert.Equal(t, map[string]int{"A": 1, "B": 2}, stats.Tenants)
	assert.Len(t, stats.Shards, 2)

	var sum int
	for _, s := range stats.Shards {
		sum += s.Connections
	}
	assert.Equal(t, 3, sum)
}

func TestHub_StatsTransportMix(t *testing.T) {
	h := NewHub()
	ws := NewConnector(context.Background(), 1, ConnectMetadata{Transport: "ws"})
	lp := NewConnector(context.Background(), 1, ConnectMetadata{Transport: "lp"})
	ws2 := NewConnector(context.Background(), 1, ConnectMetadata{Transport: "ws"})
	for _, c := range []Connector{ws, lp, ws2} {
		t.Cleanup(c.Close)
		h.Connect(c)
	}
	time.Sleep(5 * time.Millisecond)

	stats := h.Stats()
	assert.Equal(t, map[string]int{"ws": 2, "lp": 1}, stats.Transports)
	assert.GreaterOrEqual(t, stats.OldestConnectionAge, 5*time.Millisecond)

	h.Deregister(lp)
	assert.Equal(t, map[string]int{"ws": 2}, h.Stats().Transports)
}

func TestHub_ShutdownClosesLiveConnections(t *testing.T) {
	h := NewHub()
	c1 := newTestConn(t)
	h.Connect(c1)

	h.Shutdown()

	select {
	case <-c1.Done():
	default:
		t.Fatal("connection was not closed on shutdown")
	}
}

func TestHub_RandomSequencesKeepInvariant(t *testing.T) {
	h := NewHub(WithShards(4))
	rng := rand.New(rand.NewSource(7))

	var conns []Connector
	for i := 0; i < 500; i++ {
		switch {
		case len(conns) == 0 || rng.Intn(3) > 0:
			c := newTestConn(t)
			h.Connect(c)
			h.Register(c, fmt.Sprintf("t%d", rng.Intn(10)))
			conns = append(conns, c)
		default:
			idx := rng.Intn(len(conns))
			h.Deregister(conns[idx])
			if rng.Intn(2) == 0 {
				h.Deregister(conns[idx])
			}
			conns = append(conns[:idx], conns[idx+1:]...)
		}
		assertNoEmptySets(t, h)
	}

	total := 0
	for _, n := range h.Snapshot() {
		total += n
	}
	assert.Equal(t, len(conns), total)
}

func TestHub_ConcurrentRegisterDeregister(t *testing.T) {
	h := NewHub(WithShards(8))

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c := NewConnector(context.Background(), 1, ConnectMetadata{})
				key := fmt.Sprintf("tenant-%d", (w+i)%5)
				h.Connect(c)
				h.Register(c, key)
				_ = h.Lookup(key)
				_ = h.Snapshot()
				h.Deregister(c)
				c.Close()
			}
		}(w)
	}
	wg.Wait()

	assert.Empty(t, h.Snapshot())
	assert.Empty(t, h.Live())
}
