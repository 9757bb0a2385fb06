// Package shopify adapts the go-shopify SDK to the gateway's outbound
// platform operations: consent URL construction, the one-shot token
// exchange, shop lookup, and idempotent webhook registration.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"

	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/ports"
)

type client struct {
	apiKey     string
	apiSecret  string
	app        goshopify.App
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a platform client for the app credentials.
func NewClient(apiKey, apiSecret string, logger zerolog.Logger) ports.PlatformClient {
	app := goshopify.App{
		ApiKey:    apiKey,
		ApiSecret: apiSecret,
	}
	return &client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		app:        app,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (c *client) createClient(shopDomain string, accessToken string) (*goshopify.Client, error) {
	cl, err := goshopify.NewClient(c.app, shopDomain, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return cl, nil
}

// AuthorizeURL builds the consent-screen URL manually; the SDK's
// AuthorizeUrl does not carry redirect_uri and state the way Shopify
// expects. Scopes are comma separated with no spaces.
func (c *client) AuthorizeURL(shop string, scopes []string, redirectURI string, state string) (string, error) {
	if shop == "" {
		return "", fmt.Errorf("shop is required")
	}
	scopesStr := strings.Join(scopes, ",")

	authURL := fmt.Sprintf(
		"https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		shop,
		c.apiKey,
		url.QueryEscape(scopesStr),
		url.QueryEscape(redirectURI),
		url.QueryEscape(state),
	)

	c.logger.Debug().
		Str("shop", shop).
		Str("scopes", scopesStr).
		Msg("Built OAuth authorization URL")

	return authURL, nil
}

// ExchangeToken posts the authorization code to the shop's token endpoint
// and returns the token with the granted scope set. Shopify requires
// redirect_uri to match the one used during authorization, which the SDK
// does not expose, so the call is made directly. Transport failures and
// 5xx responses wrap domain.ErrUpstreamExchangeFailure so the caller can
// retry; 4xx responses are terminal.
func (c *client) ExchangeToken(ctx context.Context, shop string, code string, redirectURI string) (string, []string, error) {
	tokenURL := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)

	values := url.Values{}
	values.Set("client_id", c.apiKey)
	values.Set("client_secret", c.apiSecret)
	values.Set("code", code)
	values.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("token endpoint unreachable: %w", domain.ErrUpstreamExchangeFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", nil, fmt.Errorf("token endpoint returned %d: %w", resp.StatusCode, domain.ErrUpstreamExchangeFailure)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", nil, fmt.Errorf("token exchange rejected: status %d, body: %s", resp.StatusCode, string(body))
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return "", nil, fmt.Errorf("token response missing access_token")
	}

	var granted []string
	for _, s := range strings.Split(tokenResponse.Scope, ",") {
		if s = strings.TrimSpace(s); s != "" {
			granted = append(granted, s)
		}
	}

	return tokenResponse.AccessToken, granted, nil
}

func (c *client) GetShop(ctx context.Context, shopDomain string, accessToken string) (*goshopify.Shop, error) {
	cl, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	shop, err := cl.Shop.Get(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return shop, nil
}

// EnsureWebhook registers a subscription unless one already exists for the
// same topic and address, making repeated registration safe.
func (c *client) EnsureWebhook(ctx context.Context, shopDomain string, accessToken string, topic string, address string) error {
	cl, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return err
	}

	existing, err := cl.Webhook.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to list webhooks: %w", err)
	}
	for _, hook := range existing {
		if hook.Topic == topic && hook.Address == address {
			return nil
		}
	}

	webhook := goshopify.Webhook{
		Topic:   topic,
		Address: address,
		Format:  "json",
	}
	if _, err := cl.Webhook.Create(ctx, webhook); err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}

	c.logger.Info().
		Str("shop", shopDomain).
		Str("topic", topic).
		Msg("Registered webhook subscription")
	return nil
}
