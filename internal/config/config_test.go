package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, "INFO", cfg.Global.LogLevel)
	assert.Equal(t, "stratacache", cfg.Global.MetricsNamespace)

	assert.Equal(t, 1024, cfg.Engine.CompressionThresholdBytes)
	assert.Equal(t, 0.7, cfg.Engine.CompressionRatioTarget)
	assert.Equal(t, 10*1024, cfg.Engine.OverflowSizeBytes)
	assert.Equal(t, 0.8, cfg.Engine.OverflowImportance)
	assert.Equal(t, 0.9, cfg.Engine.DurableImportance)
	assert.Equal(t, time.Hour, cfg.Engine.DefaultTTL)
	assert.Equal(t, 2*time.Hour, cfg.Engine.HighCapacityTTL)

	assert.Equal(t, 500, cfg.Tiers.Local.Capacity)
	assert.Equal(t, 2000, cfg.Tiers.Local.MaxCapacity)
	assert.Equal(t, "redis", cfg.Tiers.HighCapacity.Backend)

	assert.Equal(t, 5*time.Minute, cfg.Optimizer.Interval)
	assert.Equal(t, 0.97, cfg.Optimizer.TargetHitRate)
	assert.Equal(t, 0.30, cfg.Optimizer.LocalHitShare)
	assert.Equal(t, 30*24*time.Hour, cfg.Optimizer.SweepMaxAge)
	assert.Equal(t, 0.5, cfg.Optimizer.SweepMinImportance)

	require.NoError(t, cfg.Validate())
}

func TestConfigFileRoundTrip(t *testing.T) {
	cfg := NewDefault()
	cfg.Global.LogLevel = "DEBUG"
	cfg.Tiers.Local.Capacity = 750
	cfg.Tiers.HighCapacity.Backend = "s3"
	cfg.Tiers.HighCapacity.S3.Bucket = "cache-overflow"
	cfg.Optimizer.TargetHitRate = 0.99

	path := filepath.Join(t.TempDir(), "conf", "stratacache.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	loaded := NewDefault()
	require.NoError(t, loaded.LoadFromFile(path))

	assert.Equal(t, cfg, loaded)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STRATACACHE_LOG_LEVEL", "ERROR")
	t.Setenv("STRATACACHE_TARGET_HIT_RATE", "0.95")
	t.Setenv("STRATACACHE_COMPRESSION_THRESHOLD_BYTES", "2048")
	t.Setenv("STRATACACHE_TIER0_CAPACITY", "100")
	t.Setenv("STRATACACHE_TIER0_MAX_CAPACITY", "400")
	t.Setenv("STRATACACHE_COLD_SWEEP_MAX_AGE_DAYS", "7")
	t.Setenv("STRATACACHE_OPTIMIZER_INTERVAL_SECONDS", "60")
	t.Setenv("STRATACACHE_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("STRATACACHE_COLD_DSN", "postgres://db.internal/cache")
	t.Setenv("STRATACACHE_S3_BUCKET", "overflow")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "ERROR", cfg.Global.LogLevel)
	assert.Equal(t, 0.95, cfg.Optimizer.TargetHitRate)
	assert.Equal(t, 2048, cfg.Engine.CompressionThresholdBytes)
	assert.Equal(t, 100, cfg.Tiers.Local.Capacity)
	assert.Equal(t, 400, cfg.Tiers.Local.MaxCapacity)
	assert.Equal(t, 7*24*time.Hour, cfg.Optimizer.SweepMaxAge)
	assert.Equal(t, time.Minute, cfg.Optimizer.Interval)

	assert.Equal(t, "redis.internal:6380", cfg.Tiers.Tracked.Redis.Addr)
	assert.Equal(t, "redis.internal:6380", cfg.Tiers.Distributed.Addr)
	assert.Equal(t, "redis.internal:6380", cfg.Tiers.HighCapacity.Redis.Addr)
	assert.Equal(t, "postgres://db.internal/cache", cfg.Tiers.Cold.DSN)
	assert.Equal(t, "overflow", cfg.Tiers.HighCapacity.S3.Bucket)
}

func TestLoadFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("STRATACACHE_TARGET_HIT_RATE", "not-a-number")
	t.Setenv("STRATACACHE_TIER0_CAPACITY", "many")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 0.97, cfg.Optimizer.TargetHitRate)
	assert.Equal(t, 500, cfg.Tiers.Local.Capacity)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "hit rate out of range",
			mutate:  func(c *Config) { c.Optimizer.TargetHitRate = 1.5 },
			wantErr: "target_hit_rate",
		},
		{
			name:    "ratio target out of range",
			mutate:  func(c *Config) { c.Engine.CompressionRatioTarget = 0 },
			wantErr: "compression_ratio_target",
		},
		{
			name:    "zero local capacity",
			mutate:  func(c *Config) { c.Tiers.Local.Capacity = 0 },
			wantErr: "tier0 capacity",
		},
		{
			name:    "max below capacity",
			mutate:  func(c *Config) { c.Tiers.Local.MaxCapacity = 10 },
			wantErr: "max_capacity",
		},
		{
			name:    "sweep importance out of range",
			mutate:  func(c *Config) { c.Optimizer.SweepMinImportance = 1.2 },
			wantErr: "cold_sweep_min_importance",
		},
		{
			name:    "unknown high-capacity backend",
			mutate:  func(c *Config) { c.Tiers.HighCapacity.Backend = "tape" },
			wantErr: "high_capacity backend",
		},
		{
			name: "s3 backend without bucket",
			mutate: func(c *Config) {
				c.Tiers.HighCapacity.Backend = "s3"
				c.Tiers.HighCapacity.S3.Bucket = ""
			},
			wantErr: "bucket",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Global.LogLevel = "LOUD" },
			wantErr: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
