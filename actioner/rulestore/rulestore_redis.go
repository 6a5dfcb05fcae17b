package rulestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hma-go/actioner/actioner/policy"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// redis key holding the JSON policy document
var DefaultRedisKey = "actioner/policy"

// expiration of the stored policy document; refreshed on every Put
var RedisPolicyTTL = 365 * 24 * time.Hour

// Reads the policy document from a single redis key. A small in-process TinyLFU cache sits in front of redis.
type RedisStore struct {
	Client *redis.Client
	Data   *cache.Cache
	Key    string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL, key string, localTTL time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = DefaultRedisKey
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(16, localTTL),
	})
	return &RedisStore{
		Client: rdb,
		Data:   data,
		Key:    key,
	}, nil
}

func (s *RedisStore) Load(ctx context.Context) (*policy.Snapshot, error) {
	var raw string
	err := s.Data.Get(ctx, s.Key, &raw)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("%w: redis key %s", ErrNotFound, s.Key)
	}
	if err != nil {
		return nil, err
	}
	return policy.ParseSnapshotJSON([]byte(raw))
}

// Stores a policy document (raw JSON) after checking that it parses.
func (s *RedisStore) Put(ctx context.Context, raw []byte) error {
	if _, err := policy.ParseSnapshotJSON(raw); err != nil {
		return err
	}
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   s.Key,
		Value: string(raw),
		TTL:   RedisPolicyTTL,
	})
}
