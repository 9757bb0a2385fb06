package ports

import (
	"context"
	"time"

	"shopify-gateway/internal/domain"
)

// SessionStore holds issued session tokens and their platform credentials.
// At most one active session exists per shop; Issue atomically replaces any
// prior session, and a Revoke must be visible to all subsequent Validate
// calls for that shop.
type SessionStore interface {
	Issue(ctx context.Context, shop string, accessToken string, scopes []string, ttl time.Duration) (*domain.Session, error)

	// Validate returns the session for a bearer token, or
	// domain.ErrExpiredOrRevokedSession when the token is unknown,
	// expired, or revoked. No platform round trip is made.
	Validate(ctx context.Context, token string) (*domain.Session, error)

	Revoke(ctx context.Context, shop string) error
}

// StateStore persists the anti-forgery nonce between the login redirect and
// the OAuth callback. Consume is one-shot: a state can be redeemed once.
type StateStore interface {
	Save(ctx context.Context, state *domain.OAuthState, ttl time.Duration) error
	Consume(ctx context.Context, state string) (*domain.OAuthState, error)
}

// EncryptionService encrypts platform credentials at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
