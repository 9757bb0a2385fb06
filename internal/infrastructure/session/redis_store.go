// Package session implements the gateway's session store on Redis. A
// single shared store gives per-tenant read-after-write consistency across
// gateway instances: a revoke committed here is visible to every
// subsequent validate.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/ports"
)

const (
	tokenKeyPrefix = "session:token:"
	shopKeyPrefix  = "session:shop:"
)

// RedisStore implements ports.SessionStore. Two keys exist per session:
// token -> session record, and shop -> active token. The shop index is
// what makes "at most one active session per tenant" enforceable.
type RedisStore struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates a session store backed by the given Redis client.
func NewRedisStore(rdb *redis.Client, logger zerolog.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, logger: logger}
}

var _ ports.SessionStore = (*RedisStore)(nil)

// issueScript installs the new session record, swaps the shop index, and
// deletes the displaced token in one atomic step. Reading the prior token
// inside the script is what makes concurrent Issue calls for the same
// shop safe: exactly one of them survives.
var issueScript = redis.NewScript(`
local prior = redis.call('GET', KEYS[2])
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('SET', KEYS[2], ARGV[3], 'PX', ARGV[2])
if prior and prior ~= ARGV[3] then
	redis.call('DEL', ARGV[4] .. prior)
end
return prior
`)

// Issue creates a session for the shop, replacing any prior one. The new
// record, the shop index swap, and the deletion of the displaced token
// are one script invocation, so no reader observes two active sessions
// for the same shop. Nothing is persisted for a non-positive ttl;
// the returned session exists but will never validate.
func (s *RedisStore) Issue(ctx context.Context, shop string, accessToken string, scopes []string, ttl time.Duration) (*domain.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &domain.Session{
		Token:       token,
		Shop:        shop,
		AccessToken: accessToken,
		Scopes:      scopes,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}

	if ttl <= 0 {
		return sess, nil
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	keys := []string{tokenKeyPrefix + token, shopKeyPrefix + shop}
	args := []interface{}{payload, ttl.Milliseconds(), token, tokenKeyPrefix}
	if err := issueScript.Run(ctx, s.rdb, keys, args...).Err(); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info().Str("shop", shop).Time("expires_at", sess.ExpiresAt).Msg("Session issued")
	return sess, nil
}

// Validate looks up a bearer token and returns the session only if it is
// unexpired and unrevoked. No platform round trip is made.
func (s *RedisStore) Validate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrExpiredOrRevokedSession
	}

	payload, err := s.rdb.Get(ctx, tokenKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrExpiredOrRevokedSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	if !sess.Active(time.Now()) {
		return nil, domain.ErrExpiredOrRevokedSession
	}
	return &sess, nil
}

// Revoke invalidates the shop's active session. Subsequent Validate calls
// for any token tied to the shop return invalid.
func (s *RedisStore) Revoke(ctx context.Context, shop string) error {
	token, err := s.rdb.Get(ctx, shopKeyPrefix+shop).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read active session index: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, tokenKeyPrefix+token)
	pipe.Del(ctx, shopKeyPrefix+shop)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.logger.Info().Str("shop", shop).Msg("Session revoked")
	return nil
}

// generateToken returns an opaque 256-bit bearer token.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
