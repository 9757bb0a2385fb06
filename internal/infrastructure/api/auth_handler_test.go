package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	shopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopify-gateway/internal/application"
	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/infrastructure/session"
	"shopify-gateway/internal/infrastructure/signature"
)

type stubPlatform struct{}

func (stubPlatform) AuthorizeURL(shop string, scopes []string, redirectURI, state string) (string, error) {
	return fmt.Sprintf("https://%s/admin/oauth/authorize?state=%s", shop, state), nil
}

func (stubPlatform) ExchangeToken(_ context.Context, _, _, _ string) (string, []string, error) {
	return "shpat_token", nil, nil
}

func (stubPlatform) GetShop(_ context.Context, _, _ string) (*shopify.Shop, error) {
	return nil, assert.AnError
}

func (stubPlatform) EnsureWebhook(_ context.Context, _, _, _, _ string) error { return nil }

type stubEncryption struct{}

func (stubEncryption) Encrypt(plaintext string) (string, error)  { return plaintext, nil }
func (stubEncryption) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

type stubAudit struct{}

func (stubAudit) Record(context.Context, *domain.AuditRecord) error { return nil }

func newAuthHandler(t *testing.T) (*AuthHandler, *session.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sessions := session.NewRedisStore(client, zerolog.Nop())
	states := session.NewRedisStateStore(client)

	svc := application.NewAuthService(
		states,
		sessions,
		newFakeShopRepo(),
		stubPlatform{},
		stubEncryption{},
		signature.NewEngine(testSecret),
		stubAudit{},
		zerolog.Nop(),
		application.AuthServiceConfig{AppURL: "https://gateway.example.com"},
	)
	return NewAuthHandler(svc, sessions, zerolog.Nop()), sessions
}

func TestLoginRedirectsToConsentScreen(t *testing.T) {
	handler, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/login?shop=acme.myshopify.com", nil)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "acme.myshopify.com", loc.Host)
	assert.NotEmpty(t, loc.Query().Get("state"))
}

func TestLoginRejectsMalformedShop(t *testing.T) {
	handler, _ := newAuthHandler(t)

	for _, shop := range []string{"", "not-a-shop", "evil.example.com", "acme.myshopify.com.evil.com"} {
		req := httptest.NewRequest(http.MethodGet, "/auth/login?shop="+url.QueryEscape(shop), nil)
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code, "shop %q", shop)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "shop parameter is missing or malformed", resp["error"])
	}
}

func TestTokenReturnsCredentialForActiveSession(t *testing.T) {
	handler, sessions := newAuthHandler(t)

	sess, err := sessions.Issue(context.Background(), "acme.myshopify.com", "shpat_token", domain.BaseScopes, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	handler.Token(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "shpat_token", resp["accessToken"])

	expiresAt, err := time.Parse(time.RFC3339, resp["expiresAt"])
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)
}

func TestTokenAcceptsSessionTokenHeader(t *testing.T) {
	handler, sessions := newAuthHandler(t)

	sess, err := sessions.Issue(context.Background(), "acme.myshopify.com", "shpat_token", domain.BaseScopes, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
	req.Header.Set("X-Session-Token", sess.Token)
	rec := httptest.NewRecorder()
	handler.Token(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenRejectsInvalidSession(t *testing.T) {
	handler, sessions := newAuthHandler(t)

	sess, err := sessions.Issue(context.Background(), "acme.myshopify.com", "shpat_token", domain.BaseScopes, time.Hour)
	require.NoError(t, err)
	require.NoError(t, sessions.Revoke(context.Background(), "acme.myshopify.com"))

	cases := map[string]string{
		"revoked token": sess.Token,
		"unknown token": "deadbeef",
		"empty token":   "",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			handler.Token(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Invalid session", resp["error"])
		})
	}
}

func TestRegisterWebhooksRequiresSession(t *testing.T) {
	handler, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/register", nil)
	rec := httptest.NewRecorder()
	handler.RegisterWebhooks(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterWebhooksReturnsTopics(t *testing.T) {
	handler, sessions := newAuthHandler(t)

	sess, err := sessions.Issue(context.Background(), "acme.myshopify.com", "shpat_token", domain.BaseScopes, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/register", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	handler.RegisterWebhooks(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool     `json:"success"`
		Topics  []string `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.ElementsMatch(t, application.WebhookTopics, resp.Topics)
}
