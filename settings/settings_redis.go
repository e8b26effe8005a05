package settings

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists settings in redis, with a local TinyLFU cache in front
// of reads. Settings are read on every inbound message, so the local cache
// carries most of the load.
type RedisStore struct {
	Data *cache.Cache
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL string, localTTL time.Duration) (*RedisStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, localTTL),
	})
	return &RedisStore{
		Data: data,
	}, nil
}

func redisSettingKey(group, key string) string {
	return "settings/" + group + "/" + key
}

func (s *RedisStore) Get(ctx context.Context, group, key string) ([]byte, error) {
	var val []byte
	err := s.Data.Get(ctx, redisSettingKey(group, key), &val)
	if err == cache.ErrCacheMiss {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, group, key string, val []byte) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisSettingKey(group, key),
		Value: val,
		// settings are authoritative in redis, no expiration
		TTL: 0,
	})
}

func (s *RedisStore) Delete(ctx context.Context, group, key string) error {
	err := s.Data.Delete(ctx, redisSettingKey(group, key))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
