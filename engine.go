// Package stratacache is a five-tier caching engine: an in-process LRU, a
// tracked remote cache with push invalidation, a distributed Redis tier, a
// high-capacity compressed tier backed by Redis or S3, and a relational
// cold store. Reads walk the tiers fastest-first and promote on hit; writes
// fan out per placement policy; every tier is optional and the engine
// degrades tier by tier toward an uncached system instead of failing.
package stratacache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stratacache/stratacache/internal/cache"
	"github.com/stratacache/stratacache/internal/codec"
	"github.com/stratacache/stratacache/internal/config"
	"github.com/stratacache/stratacache/internal/metrics"
	s3store "github.com/stratacache/stratacache/internal/storage/s3"
	"github.com/stratacache/stratacache/pkg/types"
)

// SetOptions carries the placement inputs for a write.
type SetOptions = cache.SetOptions

// Config is the engine configuration. Use DefaultConfig as a starting
// point; a tier with an empty address, bucket or DSN is left unwired.
type Config = config.Config

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return config.NewDefault()
}

// LoadConfig reads configuration from an optional YAML file and applies
// environment overrides on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := config.NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Engine is the public face of the cache hierarchy. Construct one per
// process region of use; there is no package-level instance.
type Engine struct {
	orch    *cache.Orchestrator
	tracked *cache.TrackedCache
	logger  *slog.Logger

	redisClients []*redis.Client
	pool         *pgxpool.Pool
}

// New builds an engine from configuration, connecting every tier the
// configuration enables. registry may be nil to skip Prometheus
// registration.
func New(ctx context.Context, cfg *Config, registry prometheus.Registerer) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Global.LogLevel)
	e := &Engine{logger: logger}

	deps := cache.Deps{
		Local:   cache.NewLocalCache(cfg.Tiers.Local.Capacity),
		Metrics: metrics.NewCollector(cfg.Global.MetricsNamespace, registry),
		Logger:  logger,
	}

	if addr := cfg.Tiers.Tracked.Redis.Addr; addr != "" {
		client := cache.NewRedisClient(cfg.Tiers.Tracked.Redis)
		e.redisClients = append(e.redisClients, client)

		var feed cache.InvalidationFeed
		if channel := cfg.Tiers.Tracked.InvalidationChannel; channel != "" {
			feed = cache.NewRedisInvalidationFeed(client, channel)
		}

		remote := cache.NewRedisCache(client, codec.NewPassthrough(), "tracked")
		e.tracked = cache.NewTrackedCache(remote, cfg.Tiers.Tracked.MirrorCapacity, feed, logger)
		deps.Tracked = e.tracked
	}

	if addr := cfg.Tiers.Distributed.Addr; addr != "" {
		client := cache.NewRedisClient(cfg.Tiers.Distributed)
		e.redisClients = append(e.redisClients, client)

		cd := codec.New(cfg.Engine.CompressionThresholdBytes, cfg.Engine.CompressionRatioTarget)
		deps.Distributed = cache.NewRedisCache(client, cd, "distributed")
	}

	highCapacity, err := e.buildHighCapacity(ctx, cfg)
	if err != nil {
		e.closeBackends()
		return nil, err
	}
	deps.HighCapacity = highCapacity

	if dsn := cfg.Tiers.Cold.DSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			e.closeBackends()
			return nil, fmt.Errorf("cold store connection failed: %w", err)
		}
		e.pool = pool

		store := cache.NewPostgresColdStore(pool, cfg.Tiers.Cold.Table)
		if err := store.EnsureSchema(ctx); err != nil {
			e.closeBackends()
			return nil, err
		}
		deps.Cold = store
	}

	e.orch = cache.NewOrchestrator(deps, cfg)
	return e, nil
}

func (e *Engine) buildHighCapacity(ctx context.Context, cfg *Config) (types.RemoteCache, error) {
	hc := cfg.Tiers.HighCapacity

	switch hc.Backend {
	case "s3":
		if hc.S3.Bucket == "" {
			return nil, nil
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(hc.S3.Region))
		if err != nil {
			return nil, fmt.Errorf("high-capacity s3 backend init failed: %w", err)
		}
		client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			o.UsePathStyle = hc.S3.PathStyle
			if hc.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(hc.S3.Endpoint)
			}
		})
		return s3store.New(client, hc.S3.Bucket, hc.S3.KeyPrefix, e.logger), nil

	default:
		if hc.Redis.Addr == "" {
			return nil, nil
		}
		client := cache.NewRedisClient(hc.Redis)
		e.redisClients = append(e.redisClients, client)
		return cache.NewRedisCache(client, codec.NewAlwaysCompress(), "high_capacity"), nil
	}
}

// Get returns the canonical serialized value for (key, tenant) from the
// fastest tier holding it.
func (e *Engine) Get(ctx context.Context, key, tenantID string) ([]byte, error) {
	return e.orch.Get(ctx, key, tenantID)
}

// GetWithOrigin is Get plus the tier that produced the value.
func (e *Engine) GetWithOrigin(ctx context.Context, key, tenantID string) ([]byte, types.TierID, error) {
	return e.orch.GetWithOrigin(ctx, key, tenantID)
}

// GetInto retrieves the value and decodes it into v.
func (e *Engine) GetInto(ctx context.Context, key, tenantID string, v interface{}) error {
	data, err := e.orch.Get(ctx, key, tenantID)
	if err != nil {
		return err
	}
	return codec.Unmarshal(data, v)
}

// Set stores value across the tiers the placement policy selects.
func (e *Engine) Set(ctx context.Context, key string, value interface{}, tenantID string, opts SetOptions) error {
	return e.orch.Set(ctx, key, value, tenantID, opts)
}

// Delete removes (key, tenant) from every tier. Returns true when at least
// one tier held the entry.
func (e *Engine) Delete(ctx context.Context, key, tenantID string) bool {
	return e.orch.Delete(ctx, key, tenantID)
}

// Exists reports whether any tier holds (key, tenant).
func (e *Engine) Exists(ctx context.Context, key, tenantID string) bool {
	return e.orch.Exists(ctx, key, tenantID)
}

// GetOrPopulate returns the cached value or computes and stores it,
// coalescing concurrent populations of the same key.
func (e *Engine) GetOrPopulate(ctx context.Context, key, tenantID string, opts SetOptions,
	populate func(ctx context.Context) (interface{}, error)) ([]byte, error) {
	return e.orch.GetOrPopulate(ctx, key, tenantID, opts, populate)
}

// Tiers returns the static descriptors of the hierarchy, fastest first.
func (e *Engine) Tiers() []types.TierDescriptor {
	out := make([]types.TierDescriptor, types.TierCount)
	for i := range out {
		out[i] = cache.Descriptor(types.TierID(i))
	}
	return out
}

// Metrics exposes the engine's metrics collector.
func (e *Engine) Metrics() *metrics.Collector {
	return e.orch.Metrics()
}

// Close stops the optimizer and the invalidation listener, then closes the
// backend connections.
func (e *Engine) Close() error {
	var firstErr error
	if e.orch != nil {
		if err := e.orch.Close(); err != nil {
			firstErr = err
		}
	}
	if e.tracked != nil {
		if err := e.tracked.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := e.closeBackends(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (e *Engine) closeBackends() error {
	var firstErr error
	for _, client := range e.redisClients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.redisClients = nil

	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
	return firstErr
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
