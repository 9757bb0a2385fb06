package api

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/infrastructure/session"
)

const testSecret = "shpss_test_secret"

type fakeShopRepo struct {
	mu      sync.Mutex
	shops   map[string]*domain.Shop
	logged  []*domain.WebhookEvent
	findErr error
}

func newFakeShopRepo() *fakeShopRepo {
	return &fakeShopRepo{shops: make(map[string]*domain.Shop)}
}

func (f *fakeShopRepo) FindByDomain(_ context.Context, shopDomain string) (*domain.Shop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.shops[shopDomain], nil
}

func (f *fakeShopRepo) Upsert(_ context.Context, shop *domain.Shop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shops[shop.Domain] = shop
	return nil
}

func (f *fakeShopRepo) MarkUninstalled(_ context.Context, shopDomain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if shop, ok := f.shops[shopDomain]; ok {
		shop.Active = false
		shop.AccessToken = ""
	}
	return nil
}

func (f *fakeShopRepo) LogWebhook(_ context.Context, event *domain.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logged = append(f.logged, event)
	return nil
}

func (f *fakeShopRepo) loggedEvents() []*domain.WebhookEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.WebhookEvent(nil), f.logged...)
}

// newSessionStore returns a session store backed by an in-process Redis.
func newSessionStore(t *testing.T) *session.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return session.NewRedisStore(client, zerolog.Nop())
}
