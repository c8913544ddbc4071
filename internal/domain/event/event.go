package event

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Wire event names. Clients subscribe to these exact strings.
const (
	NameRegistered           = "registered"
	NameReceiveNotification  = "receive-notification"
	NameRefreshPendingCounts = "refresh-pending-counts"
)

type EventPriority int32

const (
	PriorityLow    EventPriority = 10
	PriorityNormal EventPriority = 20
	PriorityHigh   EventPriority = 30
)

// Eventer defines the contract for all data packets flowing through the Hub.
type Eventer interface {
	GetID() string
	GetName() string
	GetPriority() EventPriority
	GetOccurredAt() int64
	GetPayload() any
	GetCached() any
	SetCached(any)
}

// envelope carries the fields shared by every event kind.
//
// [FAN_OUT_CACHE] One event instance is pushed to many connections whose write pumps run
// concurrently, so the transport-specific encoding is cached behind an atomic pointer.
type envelope struct {
	id         string
	name       string
	priority   EventPriority
	occurredAt int64
	payload    any
	cached     atomic.Pointer[any]
}

func (e *envelope) init(name string, priority EventPriority, occurredAt time.Time, payload any) {
	e.id = uuid.NewString()
	e.name = name
	e.priority = priority
	e.occurredAt = occurredAt.UnixMilli()
	e.payload = payload
}

func (e *envelope) GetID() string              { return e.id }
func (e *envelope) GetName() string            { return e.name }
func (e *envelope) GetPriority() EventPriority { return e.priority }
func (e *envelope) GetOccurredAt() int64       { return e.occurredAt }
func (e *envelope) GetPayload() any            { return e.payload }

func (e *envelope) GetCached() any {
	if v := e.cached.Load(); v != nil {
		return *v
	}
	return nil
}

func (e *envelope) SetCached(v any) { e.cached.Store(&v) }
