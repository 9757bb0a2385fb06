package application

import (
	"context"

	"github.com/rs/zerolog"

	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/infrastructure/pubsub"
	"shopify-gateway/internal/ports"
)

// WebhookAuditObserver consumes the verified webhook feed and records every
// delivery to the audit sink. It runs off the acknowledgment path: a slow
// or failing sink never delays the webhook response.
type WebhookAuditObserver struct {
	audit  ports.AuditSink
	logger zerolog.Logger
}

// NewWebhookAuditObserver creates an observer writing to the given sink.
func NewWebhookAuditObserver(audit ports.AuditSink, logger zerolog.Logger) *WebhookAuditObserver {
	return &WebhookAuditObserver{
		audit:  audit,
		logger: logger,
	}
}

// Run subscribes to the hub and records deliveries until ctx is cancelled.
// Intended to run on its own goroutine.
func (o *WebhookAuditObserver) Run(ctx context.Context, hub *pubsub.WebhookPubSub) {
	sub := hub.Subscribe(ctx, nil)
	for event := range sub.Events {
		record := &domain.AuditRecord{
			Kind: "webhook_delivery",
			Shop: event.Shop,
			Detail: map[string]string{
				"topic":    event.Topic,
				"event_id": event.ID,
			},
		}
		if err := o.audit.Record(ctx, record); err != nil {
			o.logger.Error().Err(err).Str("topic", event.Topic).Msg("Failed to record webhook delivery")
		}
	}
}
