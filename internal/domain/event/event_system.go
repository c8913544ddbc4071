package event

import (
	"time"

	"github.com/webitel/notification-relay/internal/domain/model"
)

var (
	_ Eventer = (*RegisteredEvent)(nil)
	_ Eventer = (*RefreshCountsEvent)(nil)
)

// RegisteredEvent acknowledges a register request on the connection that made it.
type RegisteredEvent struct {
	envelope
}

func NewRegisteredEvent(tenantKey string) *RegisteredEvent {
	ev := &RegisteredEvent{}
	ev.init(NameRegistered, PriorityNormal, time.Now(), &model.Registered{CompanyID: tenantKey})
	return ev
}

// RefreshCountsEvent tells every client that pending-approval counters changed.
//
// [LOW_PRIORITY] It carries no data beyond a timestamp; a full buffer may shed it in
// favour of a real notification.
type RefreshCountsEvent struct {
	envelope
}

func NewRefreshCountsEvent(at time.Time) *RefreshCountsEvent {
	ev := &RefreshCountsEvent{}
	ev.init(NameRefreshPendingCounts, PriorityLow, at, &model.RefreshCounts{
		Type:         model.RefreshCountsType,
		DispatchedAt: at,
	})
	return ev
}
