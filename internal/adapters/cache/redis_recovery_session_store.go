package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vaultline/trustengine/internal/ports"
)

// RedisRecoverySessionStore keeps recovery sessions between the
// start-recovery and complete-verification steps. TTL-backed so an
// abandoned recovery window closes itself.
type RedisRecoverySessionStore struct {
	client *redis.Client
}

func NewRedisRecoverySessionStore(client *redis.Client) *RedisRecoverySessionStore {
	return &RedisRecoverySessionStore{client: client}
}

func (s *RedisRecoverySessionStore) Put(ctx context.Context, sessionID uuid.UUID, session ports.RecoverySession, ttl time.Duration) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "trust:recovery:"+sessionID.String(), raw, ttl).Err()
}

func (s *RedisRecoverySessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*ports.RecoverySession, error) {
	raw, err := s.client.Get(ctx, "trust:recovery:"+sessionID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out ports.RecoverySession
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RedisRecoverySessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	return s.client.Del(ctx, "trust:recovery:"+sessionID.String()).Err()
}
