package ports

import (
	"context"

	shopify "github.com/bold-commerce/go-shopify/v4"
)

// PlatformClient defines the outbound Shopify API operations the gateway
// performs. Implementations must not retry the token exchange themselves;
// retry policy belongs to the caller.
type PlatformClient interface {
	// AuthorizeURL builds the consent-screen URL for the shop.
	AuthorizeURL(shop string, scopes []string, redirectURI string, state string) (string, error)

	// ExchangeToken trades a one-time authorization code for an access
	// token and the scopes the platform actually granted, which may be
	// narrower than requested. Network failures and 5xx responses wrap
	// domain.ErrUpstreamExchangeFailure; 4xx responses do not.
	ExchangeToken(ctx context.Context, shop string, code string, redirectURI string) (string, []string, error)

	// GetShop fetches shop metadata using the access token.
	GetShop(ctx context.Context, shop string, accessToken string) (*shopify.Shop, error)

	// EnsureWebhook registers a webhook subscription if no subscription
	// with the same topic and address exists. Safe to call repeatedly.
	EnsureWebhook(ctx context.Context, shop string, accessToken string, topic string, address string) error
}
