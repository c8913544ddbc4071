package pubsub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/webitel/notification-relay/config"
)

// Provider builds publishers and subscribers for the configured broker.
//
// [FALLBACK] With AMQP disabled every publisher and subscriber is the same in-process
// GoChannel, so the pipeline runs unchanged in single-node setups and tests.
type Provider struct {
	cfg    config.AMQPConfig
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	local   *gochannel.GoChannel
	closers []func() error
}

func NewProvider(cfg *config.Config, logger watermill.LoggerAdapter) *Provider {
	p := &Provider{cfg: cfg.AMQP, logger: logger}
	if !cfg.AMQP.Enabled {
		p.local = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		p.closers = append(p.closers, p.local.Close)
	}
	return p
}

// Local reports whether the in-process fallback is in use.
func (p *Provider) Local() bool { return p.local != nil }

func (p *Provider) BuildPublisher() (message.Publisher, error) {
	if p.local != nil {
		return p.local, nil
	}

	pub, err := amqp.NewPublisher(amqp.NewDurablePubSubConfig(p.cfg.URL, nil), p.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: amqp publisher: %w", err)
	}
	p.track(pub.Close)
	return pub, nil
}

// BuildSubscriber returns a subscriber whose queues are named "<topic>_<suffix>". A
// per-node suffix gives every node its own copy of each message.
func (p *Provider) BuildSubscriber(suffix string) (message.Subscriber, error) {
	if p.local != nil {
		return p.local, nil
	}

	cfg := nodeSubscriberConfig(p.cfg.URL, suffix)
	sub, err := amqp.NewSubscriber(cfg, p.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: amqp subscriber %s: %w", suffix, err)
	}
	p.track(sub.Close)
	return sub, nil
}

// nodeSubscriberConfig declares durable exchanges, matching the publishers, and an
// exclusive auto-delete queue that lives only as long as this node's consumer.
func nodeSubscriberConfig(url, suffix string) amqp.Config {
	cfg := amqp.NewDurablePubSubConfig(url, amqp.GenerateQueueNameTopicNameWithSuffix(suffix))
	cfg.Queue.Durable = false
	cfg.Queue.AutoDelete = true
	cfg.Queue.Exclusive = true
	return cfg
}

func (p *Provider) track(closer func() error) {
	p.mu.Lock()
	p.closers = append(p.closers, closer)
	p.mu.Unlock()
}

// Close releases every connection handed out by the provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	closers := p.closers
	p.closers = nil
	p.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
