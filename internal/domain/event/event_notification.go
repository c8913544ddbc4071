package event

import (
	"github.com/webitel/notification-relay/internal/domain/model"
)

var _ Eventer = (*NotificationEvent)(nil)

// NotificationEvent is the "receive-notification" push. A single instance is shared by
// every connection of every tenant reached by one dispatch.
type NotificationEvent struct {
	envelope
}

func NewNotificationEvent(n *model.Notification) *NotificationEvent {
	ev := &NotificationEvent{}
	ev.init(NameReceiveNotification, PriorityHigh, n.DispatchedAt, n)
	return ev
}

// Notification returns the typed payload.
func (e *NotificationEvent) Notification() *model.Notification {
	n, _ := e.payload.(*model.Notification)
	return n
}
