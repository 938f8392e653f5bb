package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHQLKey(t *testing.T) {
	assert.Equal(t, "hql_preview:hql:abc", hqlKey("abc"))
}

func TestRedisHQLStoreUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisHQLStore(client, time.Minute)

	_, ok, err := store.Get(context.Background(), "fp")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "failed to get hql from redis")

	err = store.Set(context.Background(), "fp", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save hql to redis")
}
