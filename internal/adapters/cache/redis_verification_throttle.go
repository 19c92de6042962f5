package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vaultline/trustengine/internal/ports"
)

// RedisVerificationThrottle limits repeated failed biometric
// verification attempts per burn transaction.
type RedisVerificationThrottle struct {
	client *redis.Client
}

func NewRedisVerificationThrottle(client *redis.Client) *RedisVerificationThrottle {
	return &RedisVerificationThrottle{client: client}
}

func (s *RedisVerificationThrottle) Get(ctx context.Context, key string) (ports.ThrottleState, error) {
	data, err := s.client.HGetAll(ctx, "trust:verify:"+key).Result()
	if err != nil {
		return ports.ThrottleState{}, err
	}
	if len(data) == 0 {
		return ports.ThrottleState{}, nil
	}

	state := ports.ThrottleState{}
	if raw, ok := data["failed_count"]; ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			state.FailedCount = n
		}
	}
	if raw, ok := data["locked_until"]; ok && raw != "" {
		if unix, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && unix > 0 {
			t := time.Unix(unix, 0).UTC()
			state.LockedUntil = &t
		}
	}
	return state, nil
}

func (s *RedisVerificationThrottle) RecordFailure(ctx context.Context, key string, now time.Time, threshold int, lockWindow time.Duration) (ports.ThrottleState, error) {
	redisKey := "trust:verify:" + key

	count, err := s.client.HIncrBy(ctx, redisKey, "failed_count", 1).Result()
	if err != nil {
		return ports.ThrottleState{}, err
	}

	state := ports.ThrottleState{FailedCount: int(count)}
	if int(count) >= threshold {
		lockedUntil := now.Add(lockWindow).UTC()
		_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, redisKey, "locked_until", lockedUntil.Unix())
			p.Expire(ctx, redisKey, lockWindow+30*time.Minute)
			return nil
		})
		if err != nil {
			return ports.ThrottleState{}, err
		}
		state.LockedUntil = &lockedUntil
		return state, nil
	}

	_ = s.client.Expire(ctx, redisKey, 24*time.Hour).Err()
	return state, nil
}

func (s *RedisVerificationThrottle) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, "trust:verify:"+key).Err()
}
