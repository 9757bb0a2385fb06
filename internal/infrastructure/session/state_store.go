package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/ports"
)

const stateKeyPrefix = "oauth:state:"

// RedisStateStore holds OAuth anti-forgery nonces. States are one-shot:
// Consume deletes on read, so a replayed callback finds nothing.
type RedisStateStore struct {
	rdb *redis.Client
}

// NewRedisStateStore creates a state store backed by the given Redis client.
func NewRedisStateStore(rdb *redis.Client) *RedisStateStore {
	return &RedisStateStore{rdb: rdb}
}

var _ ports.StateStore = (*RedisStateStore)(nil)

// Save persists the nonce for the duration of the consent round trip.
func (s *RedisStateStore) Save(ctx context.Context, state *domain.OAuthState, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode oauth state: %w", err)
	}
	if err := s.rdb.Set(ctx, stateKeyPrefix+state.State, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	return nil
}

// Consume atomically fetches and deletes the nonce. A missing or already
// consumed state returns domain.ErrStateMismatch.
func (s *RedisStateStore) Consume(ctx context.Context, state string) (*domain.OAuthState, error) {
	if state == "" {
		return nil, domain.ErrStateMismatch
	}

	payload, err := s.rdb.GetDel(ctx, stateKeyPrefix+state).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrStateMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	var record domain.OAuthState
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to decode oauth state: %w", err)
	}
	return &record, nil
}
