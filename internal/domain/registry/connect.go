package registry

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/notification-relay/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (REGISTRY/HUB)
// The unexported bind/release pair keeps the tenant association owned by the handle and
// mutated only by the Hub.
type Connector interface {
	GetID() uuid.UUID
	GetTenantKey() string
	Metadata() ConnectMetadata
	ConnectedAt() time.Time
	Send(ev event.Eventer, timeout time.Duration) bool // Thread-safe send with backpressure handling
	// Ready is signalled whenever the outbound queue goes from empty to non-empty.
	// Consumers drain with Next until it reports false, then wait on Ready again.
	Ready() <-chan struct{}
	// Next pops the oldest queued event without blocking.
	Next() (event.Eventer, bool)
	Pending() int
	Done() <-chan struct{}
	Dropped() uint64
	Close() // Terminate connection and release resources

	bind(tenantKey string) bool
	release() (tenantKey string, ok bool)
}

// [METADATA] EXPORTED FOR TRANSPORT AND ANALYTICS LAYERS
type ConnectMetadata struct {
	Transport string
	RemoteIP  string
	UserAgent string
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id        uuid.UUID
	metadata  ConnectMetadata
	createdAt time.Time
	ctx       context.Context
	cancelFn  context.CancelFunc
	closeOnce sync.Once // [PROTECTION]

	// [OUTBOUND_QUEUE]
	// Bounded FIFO. Only a queued low-priority event is ever removed out of order.
	qmu      sync.Mutex
	queue    []event.Eventer
	capacity int
	ready    chan struct{} // cap 1
	space    chan struct{} // cap 1

	// [REVERSE_ASSOCIATION]
	// The tenant key lives on the handle itself so disconnect cleanup never needs a second map.
	mu        sync.Mutex
	tenantKey string
	released  bool

	droppedCount uint64 // [ATOMIC_FIELD]
}

// NewConnector creates a handle with its own identity and a bounded outbound buffer.
// The handle lives until ctx is cancelled or Close is called.
func NewConnector(ctx context.Context, bufferSize int, meta ConnectMetadata) Connector {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	childCtx, cancel := context.WithCancel(ctx)

	return &connect{
		id:        uuid.New(),
		metadata:  meta,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		queue:     make([]event.Eventer, 0, bufferSize),
		capacity:  bufferSize,
		ready:     make(chan struct{}, 1),
		space:     make(chan struct{}, 1),
	}
}

// --- IMPLEMENTATION OF CONNECTOR INTERFACE ---

func (c *connect) GetID() uuid.UUID          { return c.id }
func (c *connect) Metadata() ConnectMetadata { return c.metadata }
func (c *connect) ConnectedAt() time.Time    { return c.createdAt }

func (c *connect) GetTenantKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tenantKey
}

// bind sets the tenant key once. Rebinding to the same key is allowed (idempotent register),
// rebinding to another key or binding after release is refused.
func (c *connect) bind(tenantKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return false
	}
	if c.tenantKey != "" && c.tenantKey != tenantKey {
		return false
	}
	c.tenantKey = tenantKey
	return true
}

// release marks the handle as gone and hands back its tenant key exactly once.
func (c *connect) release() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return "", false
	}
	c.released = true
	return c.tenantKey, true
}

// Send attempts to enqueue an event.
// If the queue stays full for the whole timeout, it tries to evict a low priority event.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	// [LIFECYCLE_GATE] A dead transport never accepts events, even if the buffer has room.
	if c.ctx.Err() != nil {
		return false
	}
	if c.tryEnqueue(ev) {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return false

		case <-c.space:
			if c.tryEnqueue(ev) {
				return true
			}

		// [BACKPRESSURE_THRESHOLD] Persistent slow consumer.
		case <-timer.C:
			return c.handleBackpressure(ev)
		}
	}
}

func (c *connect) tryEnqueue(ev event.Eventer) bool {
	c.qmu.Lock()
	defer c.qmu.Unlock()

	if len(c.queue) >= c.capacity {
		return false
	}
	c.push(ev)
	return true
}

// push appends under qmu and wakes the consumer.
func (c *connect) push(ev event.Eventer) {
	c.queue = append(c.queue, ev)
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// handleBackpressure runs once the queue has stayed full for the send timeout. A queued
// low-priority event may make room for a more important one; otherwise the incoming
// event is dropped. Queued events keep their relative order either way.
func (c *connect) handleBackpressure(ev event.Eventer) bool {
	c.qmu.Lock()
	defer c.qmu.Unlock()

	if len(c.queue) < c.capacity {
		c.push(ev)
		return true
	}

	if ev.GetPriority() > event.PriorityLow {
		victim := slices.IndexFunc(c.queue, func(q event.Eventer) bool {
			return q.GetPriority() <= event.PriorityLow
		})
		if victim >= 0 {
			c.queue = slices.Delete(c.queue, victim, victim+1)
			c.push(ev)
			atomic.AddUint64(&c.droppedCount, 1)
			return true
		}
	}

	atomic.AddUint64(&c.droppedCount, 1)
	return false
}

func (c *connect) Ready() <-chan struct{} { return c.ready }

func (c *connect) Next() (event.Eventer, bool) {
	c.qmu.Lock()
	if len(c.queue) == 0 {
		c.qmu.Unlock()
		return nil, false
	}
	ev := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	c.qmu.Unlock()

	select {
	case c.space <- struct{}{}:
	default:
	}
	return ev, true
}

func (c *connect) Pending() int {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return len(c.queue)
}

func (c *connect) Done() <-chan struct{} { return c.ctx.Done() }
func (c *connect) Dropped() uint64       { return atomic.LoadUint64(&c.droppedCount) }

// Close terminates the session. Queued events are left for the garbage collector;
// senders observe Done and stop enqueueing.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()
	})
}
