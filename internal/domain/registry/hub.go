/*
Package registry tracks which tenants currently hold live connections.

Key Architectural Concepts:
  - Presence Cells: every tenant key with at least one live connection owns a Cell holding
    the set of its connection handles. A Cell never exists with an empty set.
  - Sharded Locking: tenant keys are spread over shards by FNV-1a hash; each shard is guarded
    by its own RWMutex so registrations for unrelated tenants never contend.
  - Handle-Owned Reverse Association: a Connector remembers the tenant key it was registered
    under, which makes disconnect cleanup a single shard operation.
  - Consistent Views: Snapshot and Tenants read-lock every shard in index order, producing a
    point-in-time picture that no concurrent writer can tear.
*/
package registry

import (
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/notification-relay/internal/domain/model"
)

// Hubber defines the gateway for tenant presence management.
type Hubber interface {
	Connect(conn Connector)
	Register(conn Connector, tenantKey string) bool
	Deregister(conn Connector) (tenantKey string, remaining int)
	Lookup(tenantKey string) []Connector
	Tenants() []TenantConnections
	Live() []Connector
	Snapshot() map[string]int
	Stats() model.HubStats
	Shutdown()
}

// TenantConnections is one row of a point-in-time registry copy.
type TenantConnections struct {
	TenantKey   string
	Connections []Connector
}

type shard struct {
	mu    sync.RWMutex
	cells map[string]*Cell
}

// Hub implements a [SHARDED_REGISTRY] of presence cells.
type Hub struct {
	shards []*shard

	// [LIVE_SET] Every connected transport, registered or not. Registry-wide broadcasts
	// reach connections that never sent a register request.
	liveMu sync.RWMutex
	live   map[uuid.UUID]Connector

	startedAt time.Time
	config    hubConfig
}

type hubConfig struct {
	shards int
	logger *slog.Logger
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		live:      make(map[uuid.UUID]Connector),
		startedAt: time.Now(),
		config: hubConfig{
			shards: defaultShards,
			logger: slog.New(slog.DiscardHandler),
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.config.shards <= 0 {
		h.config.shards = 1
	}

	h.shards = make([]*shard, h.config.shards)
	for i := range h.shards {
		h.shards[i] = &shard{cells: make(map[string]*Cell)}
	}
	return h
}

func (h *Hub) shardFor(tenantKey string) *shard {
	f := fnv.New32a()
	_, _ = f.Write([]byte(tenantKey))
	return h.shards[f.Sum32()%uint32(len(h.shards))]
}

// Connect records a live transport connection.
func (h *Hub) Connect(conn Connector) {
	if conn == nil {
		return
	}
	h.liveMu.Lock()
	h.live[conn.GetID()] = conn
	h.liveMu.Unlock()
}

// Register binds conn to tenantKey and adds it to the tenant's set.
//
// [IDEMPOTENT] Registering the same pair twice leaves the set unchanged and still reports true.
// An empty key, a nil handle, a released handle or a handle bound to another key is refused.
func (h *Hub) Register(conn Connector, tenantKey string) bool {
	if conn == nil || tenantKey == "" {
		return false
	}

	s := h.shardFor(tenantKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	// [ATOMIC_LINK] bind and insert under the same shard lock: readers never observe a
	// handle in the set without its tenant reference, nor the reverse.
	if !conn.bind(tenantKey) {
		h.config.logger.Debug("REGISTER_REFUSED",
			"tenant_key", tenantKey,
			"conn_id", conn.GetID(),
			"bound_to", conn.GetTenantKey(),
		)
		return false
	}

	cell, ok := s.cells[tenantKey]
	if !ok {
		// [LAZY_INIT] Create the cell only when the first connection arrives.
		cell = newCell()
		s.cells[tenantKey] = cell
	}
	if cell.attach(conn) {
		h.config.logger.Debug("TENANT_CONNECTION_REGISTERED",
			"tenant_key", tenantKey,
			"conn_id", conn.GetID(),
			"connections", cell.size(),
		)
	}
	return true
}

// Deregister performs [GRACEFUL_RECLAMATION] when a connection terminates.
// It returns the tenant key the handle was bound to (empty if none) and how many
// connections that tenant still holds. Repeated calls are no-ops.
func (h *Hub) Deregister(conn Connector) (string, int) {
	if conn == nil {
		return "", 0
	}

	h.liveMu.Lock()
	delete(h.live, conn.GetID())
	h.liveMu.Unlock()

	tenantKey, ok := conn.release()
	if !ok || tenantKey == "" {
		return "", 0
	}

	s := h.shardFor(tenantKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	cell, ok := s.cells[tenantKey]
	if !ok {
		return tenantKey, 0
	}

	remaining := cell.detach(conn.GetID())
	if remaining == 0 {
		// [INVARIANT] A tenant key never maps to an empty set.
		delete(s.cells, tenantKey)
	}
	return tenantKey, remaining
}

// Lookup returns a copy of the tenant's connection set; empty when the tenant is absent.
func (h *Hub) Lookup(tenantKey string) []Connector {
	if tenantKey == "" {
		return nil
	}
	s := h.shardFor(tenantKey)
	s.mu.RLock()
	defer s.mu.RUnlock()

	cell, ok := s.cells[tenantKey]
	if !ok {
		return nil
	}
	return cell.connectors()
}

// Tenants copies every presence entry, sorted by tenant key.
func (h *Hub) Tenants() []TenantConnections {
	h.rlockAll()
	defer h.runlockAll()

	var res []TenantConnections
	for _, s := range h.shards {
		for key, cell := range s.cells {
			res = append(res, TenantConnections{TenantKey: key, Connections: cell.connectors()})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TenantKey < res[j].TenantKey })
	return res
}

// Live returns every connected transport, registered or not.
func (h *Hub) Live() []Connector {
	h.liveMu.RLock()
	defer h.liveMu.RUnlock()

	res := make([]Connector, 0, len(h.live))
	for _, conn := range h.live {
		res = append(res, conn)
	}
	return res
}

// Snapshot maps every tenant key to its connection count at one point in time.
func (h *Hub) Snapshot() map[string]int {
	h.rlockAll()
	defer h.runlockAll()

	res := make(map[string]int)
	for _, s := range h.shards {
		for key, cell := range s.cells {
			res[key] = cell.size()
		}
	}
	return res
}

// Stats reports totals and per-shard distribution for diagnostics.
func (h *Hub) Stats() model.HubStats {
	now := time.Now()
	transports := make(map[string]int)
	var oldest time.Duration

	h.liveMu.RLock()
	live := len(h.live)
	for _, conn := range h.live {
		transports[conn.Metadata().Transport]++
		oldest = max(oldest, now.Sub(conn.ConnectedAt()))
	}
	h.liveMu.RUnlock()

	h.rlockAll()
	defer h.runlockAll()

	stats := model.HubStats{
		LiveConnections:     live,
		Uptime:              now.Sub(h.startedAt),
		Transports:          transports,
		OldestConnectionAge: oldest,
		Tenants:             make(map[string]int),
		Shards:              make([]model.ShardStats, 0, len(h.shards)),
	}
	for i, s := range h.shards {
		ss := model.ShardStats{ShardID: i, TenantCount: len(s.cells)}
		for key, cell := range s.cells {
			ss.Connections += cell.size()
			stats.Tenants[key] = cell.size()
		}
		stats.TotalTenants += ss.TenantCount
		stats.TotalConnections += ss.Connections
		stats.Shards = append(stats.Shards, ss)
	}
	return stats
}

// Shutdown closes every live connection; transports observe Done and exit their pumps,
// which in turn deregisters them.
func (h *Hub) Shutdown() {
	for _, conn := range h.Live() {
		conn.Close()
	}
}

// rlockAll acquires every shard read lock in index order. Writers hold at most one
// shard lock at a time, so the fixed order cannot deadlock.
func (h *Hub) rlockAll() {
	for _, s := range h.shards {
		s.mu.RLock()
	}
}

func (h *Hub) runlockAll() {
	for i := len(h.shards) - 1; i >= 0; i-- {
		h.shards[i].mu.RUnlock()
	}
}
