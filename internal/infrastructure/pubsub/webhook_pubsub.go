// Package pubsub fans verified webhook events out to in-process
// subscribers. Delivery is best effort: a slow subscriber drops events
// rather than blocking the webhook acknowledgment path.
package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"shopify-gateway/internal/domain"
)

// Subscription is one receiver of webhook events.
type Subscription struct {
	ID     string
	Filter *EventFilter
	Events chan *domain.WebhookEvent
	cancel context.CancelFunc
}

// EventFilter narrows which events a subscription receives. A nil filter
// matches everything.
type EventFilter struct {
	Topics []string
	Shop   string
}

// WebhookPubSub manages webhook event subscriptions.
type WebhookPubSub struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	nextID        int64
	logger        zerolog.Logger
}

// NewWebhookPubSub creates an empty pub/sub hub.
func NewWebhookPubSub(logger zerolog.Logger) *WebhookPubSub {
	return &WebhookPubSub{
		subscriptions: make(map[string]*Subscription),
		logger:        logger,
	}
}

// Subscribe registers a receiver. The subscription is removed when ctx is
// cancelled or Unsubscribe is called.
func (ps *WebhookPubSub) Subscribe(ctx context.Context, filter *EventFilter) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)

	ps.mu.Lock()
	ps.nextID++
	sub := &Subscription{
		ID:     fmt.Sprintf("sub-%d", ps.nextID),
		Filter: filter,
		Events: make(chan *domain.WebhookEvent, 16),
		cancel: cancel,
	}
	ps.subscriptions[sub.ID] = sub
	ps.mu.Unlock()

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(sub.ID)
	}()

	ps.logger.Debug().Str("subscription", sub.ID).Msg("Webhook subscription created")
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (ps *WebhookPubSub) Unsubscribe(id string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	sub, ok := ps.subscriptions[id]
	if !ok {
		return
	}
	delete(ps.subscriptions, id)
	sub.cancel()
	close(sub.Events)
}

// Publish broadcasts an event to every matching subscriber without
// blocking.
func (ps *WebhookPubSub) Publish(event *domain.WebhookEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, sub := range ps.subscriptions {
		if !matches(event, sub.Filter) {
			continue
		}
		select {
		case sub.Events <- event:
		default:
			ps.logger.Warn().Str("subscription", sub.ID).Msg("Subscriber buffer full, dropping event")
		}
	}
}

func matches(event *domain.WebhookEvent, filter *EventFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Shop != "" && filter.Shop != event.Shop {
		return false
	}
	if len(filter.Topics) == 0 {
		return true
	}
	for _, topic := range filter.Topics {
		if topic == event.Topic {
			return true
		}
	}
	return false
}
