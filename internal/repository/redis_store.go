package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"HQLPreview/internal/interfaces"

	"github.com/redis/go-redis/v9"
)

const hqlKeyPrefix = "hql_preview:hql:"

type redisHQLStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHQLStore 基于 redis 的共享 HQL 存储，ttl<=0 时不过期
func NewRedisHQLStore(client *redis.Client, ttl time.Duration) interfaces.SharedHQLStore {
	return &redisHQLStore{client: client, ttl: ttl}
}

func hqlKey(fingerprint string) string {
	return fmt.Sprintf("%s%s", hqlKeyPrefix, fingerprint)
}

func (s *redisHQLStore) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	v, err := s.client.Get(ctx, hqlKey(fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get hql from redis: %w", err)
	}
	return v, true, nil
}

func (s *redisHQLStore) Set(ctx context.Context, fingerprint, hql string) error {
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, hqlKey(fingerprint), hql, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save hql to redis: %w", err)
	}
	return nil
}
