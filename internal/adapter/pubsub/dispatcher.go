package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sony/gobreaker"
	"github.com/webitel/notification-relay/internal/domain/model"
	"github.com/webitel/notification-relay/internal/service"
)

// Interface guard
var _ service.Auditor = (*eventDispatcher)(nil)

// EventDispatcher defines the high-level contract for outgoing events.
// This allows the handler to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Audit(ctx context.Context, res *model.DispatchResult) error
	Publisher() message.Publisher
}

// eventDispatcher is the concrete implementation (private).
type eventDispatcher struct {
	publisher message.Publisher
	topic     string
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
}

// BreakerSettings trips after consecutive publish failures and probes again after Timeout.
type BreakerSettings struct {
	MaxFailures uint32
	Timeout     time.Duration
}

var DefaultBreakerSettings = BreakerSettings{MaxFailures: 5, Timeout: 30 * time.Second}

// NewEventDispatcher returns the interface instead of the pointer to the struct.
func NewEventDispatcher(pub message.Publisher, topic string, bs BreakerSettings, logger *slog.Logger) EventDispatcher {
	d := &eventDispatcher{
		publisher: pub,
		topic:     topic,
		logger:    logger,
	}
	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "audit-publisher",
		MaxRequests: 1,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= bs.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("CIRCUIT_BREAKER_STATE_CHANGED",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return d
}

// Audit publishes the outcome of an executed dispatch. While the breaker is open the call
// fails fast with gobreaker.ErrOpenState instead of waiting on the broker.
func (d *eventDispatcher) Audit(ctx context.Context, res *model.DispatchResult) error {
	if res == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil result")
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("dispatch_id", res.ID)
	msg.Metadata.Set("type", string(res.Type))

	_, err = d.breaker.Execute(func() (any, error) {
		return nil, d.publisher.Publish(d.topic, msg)
	})
	if err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", d.topic, err)
	}

	d.logger.Debug("DISPATCH_AUDIT_PUBLISHED", "topic", d.topic, "dispatch_id", res.ID)
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
