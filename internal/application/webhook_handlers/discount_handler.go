package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"shopify-gateway/internal/domain"
)

// DiscountHandler handles discount-related webhook events. Downstream
// consumers subscribe to the event feed; the gateway itself only records
// the notification.
type DiscountHandler struct {
	logger zerolog.Logger
}

// NewDiscountHandler creates a new discount webhook handler.
func NewDiscountHandler(logger zerolog.Logger) *DiscountHandler {
	return &DiscountHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic.
func (h *DiscountHandler) CanHandle(topic string) bool {
	return topic == "discounts/create" ||
		topic == "discounts/update" ||
		topic == "discounts/delete"
}

// Critical returns false: discount processing is not idempotent end to
// end, so a failure must not trigger platform redelivery.
func (h *DiscountHandler) Critical() bool {
	return false
}

// Handle processes a discount webhook event.
func (h *DiscountHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var discountData map[string]any
	if err := json.Unmarshal(event.Payload, &discountData); err != nil {
		return fmt.Errorf("failed to parse discount webhook payload: %w", err)
	}

	discountID, _ := discountData["id"].(float64)
	title, _ := discountData["title"].(string)

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Float64("discountId", discountID).
		Str("title", title).
		Msg("Processing discount webhook event")

	return nil
}
