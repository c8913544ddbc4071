package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownNotificationType = errors.New("unknown notification type")
	ErrMissingTargetKeys       = errors.New("company_ids must be a non-empty array")
	ErrInvalidDelay            = errors.New("delay must not be negative")
	ErrInvalidTenantKey        = errors.New("invalid tenant key")
)

// DispatchRequest is a normalized notification request, independent of the ingress
// (HTTP body or AMQP message) that produced it.
type DispatchRequest struct {
	Type       NotificationType
	TargetKeys []string // consulted only for TypeForApproval, input order preserved
	Title      string
	Message    string
	Category   string
	Delay      time.Duration
}

// Validate rejects a request before any delivery is attempted.
func (r *DispatchRequest) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownNotificationType, string(r.Type))
	}
	if r.Type == TypeForApproval && len(r.TargetKeys) == 0 {
		return ErrMissingTargetKeys
	}
	if r.Delay < 0 {
		return ErrInvalidDelay
	}
	return nil
}

// Payload builds the client-facing record, stamping the send time.
func (r *DispatchRequest) Payload(now time.Time) *Notification {
	category := r.Category
	if category == "" {
		category = DefaultCategory
	}
	return &Notification{
		Type:         r.Type,
		Title:        r.Title,
		Message:      r.Message,
		Category:     category,
		DispatchedAt: now,
	}
}

// DispatchResult summarizes the outcome of a dispatch.
//
// [UNORDERED] Delivered and Unreachable follow processing order (sorted tenant keys for
// announcements, input order for targeted dispatch) but callers must treat them as sets.
type DispatchResult struct {
	ID           string           `json:"id"`
	Type         NotificationType `json:"type"`
	Delivered    []string         `json:"sentTo"`
	Unreachable  []string         `json:"notConnected"`
	Scheduled    bool             `json:"scheduled,omitempty"`
	ScheduledFor time.Time        `json:"scheduledFor,omitzero"`
	DispatchedAt time.Time        `json:"dispatchedAt,omitzero"`
}

// BroadcastRequest is the untargeted variant: every live connection, no accounting.
type BroadcastRequest struct {
	Title    string
	Content  string
	Category string
}

// Payload builds the announcement record sent by a broadcast.
func (r *BroadcastRequest) Payload(now time.Time) *Notification {
	category := r.Category
	if category == "" {
		category = DefaultCategory
	}
	return &Notification{
		Type:         TypeAnnouncement,
		Title:        r.Title,
		Message:      r.Content,
		Category:     category,
		DispatchedAt: now,
	}
}

// BroadcastResult always reports success; Connections is informational.
type BroadcastResult struct {
	Success     bool `json:"success"`
	Connections int  `json:"connections"`
}
