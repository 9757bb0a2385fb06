package application

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"shopify-gateway/internal/domain"
)

// WebhookTopics is the fixed set of topics the gateway subscribes to and
// dispatches.
var WebhookTopics = []string{
	"app/uninstalled",
	"discounts/create",
	"discounts/update",
	"discounts/delete",
}

// WebhookHandler processes events for the topics it claims. Critical
// handlers gate acknowledgment: their failure propagates so the platform
// redelivers. Non-critical handlers must be idempotent-safe to skip; their
// failure is logged and the delivery is still acknowledged.
type WebhookHandler interface {
	CanHandle(topic string) bool
	Critical() bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookDispatcher routes verified webhook events to registered handlers.
type WebhookDispatcher struct {
	handlers []WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a dispatcher with no handlers registered.
func NewWebhookDispatcher(logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{logger: logger}
}

// RegisterHandler adds a handler to the dispatch set.
func (d *WebhookDispatcher) RegisterHandler(handler WebhookHandler) {
	d.handlers = append(d.handlers, handler)
}

// Dispatch routes the event to every handler claiming its topic. An event
// no handler claims returns domain.ErrUnknownTopic; absence of a handler
// is a routing outcome, not a security event. Each handler runs
// independently: a non-critical handler's failure never blocks
// acknowledgment of a verified delivery.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	matched := false
	for _, handler := range d.handlers {
		if !handler.CanHandle(event.Topic) {
			continue
		}
		matched = true

		if err := handler.Handle(ctx, event); err != nil {
			if handler.Critical() {
				d.logger.Error().
					Err(err).
					Str("topic", event.Topic).
					Str("shop", event.Shop).
					Msg("Critical webhook handler failed")
				return fmt.Errorf("handler for %s: %w", event.Topic, err)
			}
			d.logger.Error().
				Err(err).
				Str("topic", event.Topic).
				Str("shop", event.Shop).
				Msg("Webhook handler failed, acknowledging anyway")
		}
	}

	if !matched {
		return fmt.Errorf("topic %s: %w", event.Topic, domain.ErrUnknownTopic)
	}
	return nil
}
