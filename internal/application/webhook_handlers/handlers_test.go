package webhook_handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopify-gateway/internal/domain"
)

type fakeSessions struct {
	mu      sync.Mutex
	revoked []string
	err     error
}

func (f *fakeSessions) Issue(_ context.Context, shop, accessToken string, scopes []string, ttl time.Duration) (*domain.Session, error) {
	return nil, nil
}

func (f *fakeSessions) Validate(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrExpiredOrRevokedSession
}

func (f *fakeSessions) Revoke(_ context.Context, shop string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.revoked = append(f.revoked, shop)
	return nil
}

type fakeShops struct {
	uninstalled []string
	err         error
}

func (f *fakeShops) FindByDomain(context.Context, string) (*domain.Shop, error) { return nil, nil }
func (f *fakeShops) Upsert(context.Context, *domain.Shop) error                 { return nil }
func (f *fakeShops) LogWebhook(context.Context, *domain.WebhookEvent) error     { return nil }

func (f *fakeShops) MarkUninstalled(_ context.Context, shopDomain string) error {
	if f.err != nil {
		return f.err
	}
	f.uninstalled = append(f.uninstalled, shopDomain)
	return nil
}

func TestAppUninstalledRevokesBeforeMarking(t *testing.T) {
	sessions := &fakeSessions{}
	shops := &fakeShops{}
	h := NewAppUninstalledHandler(sessions, shops, zerolog.Nop())

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Topic: "app/uninstalled",
		Shop:  "acme.myshopify.com",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.myshopify.com"}, sessions.revoked)
	assert.Equal(t, []string{"acme.myshopify.com"}, shops.uninstalled)
}

func TestAppUninstalledShopFromPayload(t *testing.T) {
	cases := map[string]string{
		"domain field":           `{"domain":"acme.myshopify.com"}`,
		"myshopify_domain field": `{"myshopify_domain":"acme.myshopify.com"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			sessions := &fakeSessions{}
			shops := &fakeShops{}
			h := NewAppUninstalledHandler(sessions, shops, zerolog.Nop())

			err := h.Handle(context.Background(), &domain.WebhookEvent{
				Topic:   "app/uninstalled",
				Payload: []byte(payload),
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"acme.myshopify.com"}, sessions.revoked)
		})
	}
}

func TestAppUninstalledRequiresShop(t *testing.T) {
	h := NewAppUninstalledHandler(&fakeSessions{}, &fakeShops{}, zerolog.Nop())

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Topic:   "app/uninstalled",
		Payload: []byte(`{"id":1}`),
	})
	assert.Error(t, err)
}

func TestAppUninstalledRevokeFailureStopsMarking(t *testing.T) {
	sessions := &fakeSessions{err: assert.AnError}
	shops := &fakeShops{}
	h := NewAppUninstalledHandler(sessions, shops, zerolog.Nop())

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Topic: "app/uninstalled",
		Shop:  "acme.myshopify.com",
	})
	require.Error(t, err)
	assert.Empty(t, shops.uninstalled, "shop record untouched when revocation fails")
}

func TestDiscountHandlerTopics(t *testing.T) {
	h := NewDiscountHandler(zerolog.Nop())

	assert.True(t, h.CanHandle("discounts/create"))
	assert.True(t, h.CanHandle("discounts/update"))
	assert.True(t, h.CanHandle("discounts/delete"))
	assert.False(t, h.CanHandle("app/uninstalled"))
	assert.False(t, h.Critical())
}

func TestDiscountHandlerMalformedPayload(t *testing.T) {
	h := NewDiscountHandler(zerolog.Nop())

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Topic:   "discounts/create",
		Shop:    "acme.myshopify.com",
		Payload: []byte("not json"),
	})
	assert.Error(t, err)
}
