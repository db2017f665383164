package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/stratacache/stratacache/internal/codec"
	"github.com/stratacache/stratacache/internal/config"
	cacheerr "github.com/stratacache/stratacache/pkg/errors"
	"github.com/stratacache/stratacache/pkg/types"
)

// RedisCache adapts a redis client to the RemoteCache contract used by the
// distributed and high-capacity tiers. Values pass through the codec on the
// way in and out; compression is invisible to callers.
type RedisCache struct {
	client    redis.Cmdable
	codec     *codec.Codec
	component string
}

// NewRedisClient builds a redis client from tier configuration.
func NewRedisClient(cfg config.RedisTierConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// NewRedisCache creates a RedisCache. component names the tier in errors.
func NewRedisCache(client redis.Cmdable, cd *codec.Codec, component string) *RedisCache {
	if cd == nil {
		cd = codec.NewDefault()
	}
	return &RedisCache{client: client, codec: cd, component: component}
}

// Get retrieves and unpacks a value. Absent keys map to a NOT_FOUND error,
// backend failures to CONNECTIVITY.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cacheerr.New(cacheerr.CodeNotFound, "key not found").
				WithComponent(r.component).WithOperation("get")
		}
		return nil, cacheerr.New(cacheerr.CodeConnectivity, "backend unreachable").
			WithComponent(r.component).WithOperation("get").WithCause(err)
	}

	plain, err := r.codec.Unpack(data)
	if err != nil {
		return nil, cacheerr.New(cacheerr.CodeSerialization, "stored bytes undecodable").
			WithComponent(r.component).WithOperation("get").WithCause(err)
	}
	return plain, nil
}

// Set packs and stores a value with the given TTL. TTL is mandatory on this
// tier; zero falls back to one hour.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Hour
	}

	stored, _ := r.codec.Pack(value)
	if err := r.client.Set(ctx, key, stored, ttl).Err(); err != nil {
		return cacheerr.New(cacheerr.CodeConnectivity, "backend unreachable").
			WithComponent(r.component).WithOperation("set").WithCause(err)
	}
	return nil
}

// Delete removes a key. Returns true if the key existed.
func (r *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, cacheerr.New(cacheerr.CodeConnectivity, "backend unreachable").
			WithComponent(r.component).WithOperation("delete").WithCause(err)
	}
	return n > 0, nil
}

// Exists reports whether a key is present.
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, cacheerr.New(cacheerr.CodeConnectivity, "backend unreachable").
			WithComponent(r.component).WithOperation("exists").WithCause(err)
	}
	return n > 0, nil
}

var _ types.RemoteCache = (*RedisCache)(nil)
