package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/ports"
)

// AppUninstalledHandler revokes the shop's session and marks the record
// uninstalled. It is critical: revocation must complete before the
// delivery is acknowledged, or an uninstalled shop keeps a window of
// authenticated access.
type AppUninstalledHandler struct {
	sessions ports.SessionStore
	shops    ports.ShopRepository
	logger   zerolog.Logger
}

// NewAppUninstalledHandler creates an app/uninstalled webhook handler.
func NewAppUninstalledHandler(sessions ports.SessionStore, shops ports.ShopRepository, logger zerolog.Logger) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		sessions: sessions,
		shops:    shops,
		logger:   logger,
	}
}

// CanHandle returns true for the app/uninstalled topic.
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled"
}

// Critical marks this handler as acknowledgment-gating. Both operations
// are idempotent, so platform redelivery on failure is safe.
func (h *AppUninstalledHandler) Critical() bool {
	return true
}

// Handle revokes the session first, then marks the shop uninstalled.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shop := event.Shop
	if shop == "" {
		var payload map[string]any
		if err := json.Unmarshal(event.Payload, &payload); err == nil {
			if d, ok := payload["domain"].(string); ok {
				shop = d
			} else if d, ok := payload["myshopify_domain"].(string); ok {
				shop = d
			}
		}
	}
	if shop == "" {
		return fmt.Errorf("uninstall webhook carries no shop domain")
	}

	if err := h.sessions.Revoke(ctx, shop); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if err := h.shops.MarkUninstalled(ctx, shop); err != nil {
		return fmt.Errorf("failed to mark shop uninstalled: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shop).
		Msg("App uninstalled, session revoked")
	return nil
}
