package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"jetpreview/internal/domain"
)

const redisKeyPrefix = "jetpreview:preview:"

// NewRedisClient connects to the server at redisURL
// (redis://[:password@]host:port/db) and pings it.
func NewRedisClient(ctx context.Context, redisURL string, logger logrus.FieldLogger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"addr": opts.Addr,
		"db":   opts.DB,
	}).Info("Connected to Redis")
	return client, nil
}

// RedisStore keeps previews in Redis so several instances share them.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(url string) string {
	return redisKeyPrefix + url
}

func (s *RedisStore) Get(ctx context.Context, key string) (domain.Metadata, bool, error) {
	val, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Metadata{}, false, nil
	}
	if err != nil {
		return domain.Metadata{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var md domain.Metadata
	if err := json.Unmarshal(val, &md); err != nil {
		return domain.Metadata{}, false, fmt.Errorf("decode preview %s: %w", key, err)
	}
	return md, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, md domain.Metadata, ttl time.Duration) error {
	val, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal preview: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(key), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
