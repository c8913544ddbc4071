package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/webitel/notification-relay/internal/domain/model"
)

// SendNotificationV1 is the body accepted by POST /send-notification and by the AMQP
// dispatch topic.
type SendNotificationV1 struct {
	CompanyIDs []json.RawMessage `json:"company_ids"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Type       string            `json:"type"`
	Category   string            `json:"category"`
	DelayMs    *int64            `json:"delay_ms"`
}

// maxDelayMs is the largest delay_ms that still fits a time.Duration.
const maxDelayMs = math.MaxInt64 / int64(time.Millisecond)

// ToDomain normalizes the request. A missing type means announcement; company ids that
// do not form a valid tenant key are dropped and returned for logging. A delay_ms that
// does not fit a time.Duration fails with model.ErrInvalidDelay.
func (d *SendNotificationV1) ToDomain() (*model.DispatchRequest, []string, error) {
	typ := model.NotificationType(d.Type)
	if d.Type == "" {
		typ = model.TypeAnnouncement
	}

	if d.DelayMs != nil && (*d.DelayMs > maxDelayMs || *d.DelayMs < -maxDelayMs) {
		return nil, nil, fmt.Errorf("%w: delay_ms %d out of range", model.ErrInvalidDelay, *d.DelayMs)
	}

	keys, rejected := d.targetKeys()
	req := &model.DispatchRequest{
		Type:       typ,
		TargetKeys: keys,
		Title:      d.Title,
		Message:    d.Message,
		Category:   d.Category,
	}
	if d.DelayMs != nil {
		req.Delay = time.Duration(*d.DelayMs) * time.Millisecond
	}
	return req, rejected, nil
}

// targetKeys decodes each element on its own so numeric ids keep their exact text
// regardless of which decoder produced the envelope.
func (d *SendNotificationV1) targetKeys() ([]string, []string) {
	var keys, rejected []string
	for _, raw := range d.CompanyIDs {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()

		var v any
		if err := dec.Decode(&v); err != nil {
			rejected = append(rejected, string(raw))
			continue
		}
		key, ok := model.NormalizeTenantKey(v)
		if !ok {
			rejected = append(rejected, string(raw))
			continue
		}
		keys = append(keys, key)
	}
	return keys, rejected
}

// BroadcastV1 is the body accepted by POST /broadcast.
type BroadcastV1 struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (d *BroadcastV1) ToDomain() *model.BroadcastRequest {
	return &model.BroadcastRequest{
		Title:    d.Title,
		Content:  d.Content,
		Category: d.Category,
	}
}
