package ports

import (
	"context"

	"shopify-gateway/internal/domain"
)

// ShopRepository defines the interface for shop record persistence.
type ShopRepository interface {
	// FindByDomain returns the shop record or nil when none exists.
	FindByDomain(ctx context.Context, shopDomain string) (*domain.Shop, error)

	// Upsert creates or replaces the record for the shop's domain.
	Upsert(ctx context.Context, shop *domain.Shop) error

	// MarkUninstalled flags the shop inactive and records the uninstall time.
	MarkUninstalled(ctx context.Context, shopDomain string) error

	// LogWebhook records a verified webhook delivery.
	LogWebhook(ctx context.Context, event *domain.WebhookEvent) error
}

// AuditSink accepts structured failure records for later inspection.
type AuditSink interface {
	Record(ctx context.Context, record *domain.AuditRecord) error
}
