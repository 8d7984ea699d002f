package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jetpreview/internal/domain"
)

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "jetpreview:preview:https://example.com", redisKey("https://example.com"))
}

func TestRedisStore_UnreachableServer(t *testing.T) {
	s := NewRedisStore(unreachableRedis(t))

	_, ok, err := s.Get(context.Background(), "https://example.com")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, s.Set(context.Background(), "https://example.com", titled("x"), time.Minute))
}

func TestRedisStore_CacheDegradesToCompute(t *testing.T) {
	c := New(NewRedisStore(unreachableRedis(t)), Options{}, testLogger())
	md, err := c.GetOrCompute(context.Background(), "https://example.com", func(context.Context, string) (domain.Metadata, error) {
		return titled("Computed"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Computed", *md.Title)
}

func TestNewRedisClient(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url", testLogger())
	assert.Error(t, err)

	_, err = NewRedisClient(context.Background(), "redis://127.0.0.1:1/0", testLogger())
	assert.Error(t, err)
}
