package model

import "time"

// NotificationType selects the delivery mode of a dispatch.
type NotificationType string

const (
	// [BROADCAST] Every registered tenant receives the notification.
	TypeAnnouncement NotificationType = "announcement"
	// [TARGETED] Only the listed company ids receive the notification.
	TypeForApproval NotificationType = "for_approval"
)

// DefaultCategory is applied when a request carries no category.
const DefaultCategory = "Update"

// RefreshCountsType is the payload type of the registry-wide "pending counts changed" signal.
const RefreshCountsType = "refresh-counts"

// Valid reports whether t is a known delivery mode.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeAnnouncement, TypeForApproval:
		return true
	default:
		return false
	}
}

// Notification is the immutable record pushed to clients on "receive-notification".
// DispatchedAt is stamped at send time, which for deferred dispatch is after the delay.
type Notification struct {
	Type         NotificationType `json:"type"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	Category     string           `json:"category"`
	DispatchedAt time.Time        `json:"dispatchedAt"`
}

// RefreshCounts is the payload of "refresh-pending-counts".
type RefreshCounts struct {
	Type         string    `json:"type"`
	DispatchedAt time.Time `json:"dispatchedAt"`
}

// Registered acknowledges a successful register request.
type Registered struct {
	CompanyID string `json:"company_id"`
}
