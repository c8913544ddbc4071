package registry

import (
	"github.com/google/uuid"
)

// Cell is the presence entry of a single tenant: the set of its live connections
// (several browser tabs, devices, long-poll requests).
//
// A Cell is always accessed under the write or read lock of the shard that owns it,
// so it carries no lock of its own.
type Cell struct {
	// [SESSIONS]
	// Keyed by connection id: registering the same handle twice is a no-op.
	sessions map[uuid.UUID]Connector
}

func newCell() *Cell {
	return &Cell{sessions: make(map[uuid.UUID]Connector)}
}

// attach adds conn to the set and reports whether it was new.
func (c *Cell) attach(conn Connector) bool {
	id := conn.GetID()
	if _, ok := c.sessions[id]; ok {
		return false
	}
	c.sessions[id] = conn
	return true
}

// detach removes the connection and returns how many remain.
func (c *Cell) detach(connID uuid.UUID) int {
	delete(c.sessions, connID)
	return len(c.sessions)
}

func (c *Cell) size() int { return len(c.sessions) }

func (c *Cell) connectors() []Connector {
	res := make([]Connector, 0, len(c.sessions))
	for _, conn := range c.sessions {
		res = append(res, conn)
	}
	return res
}
