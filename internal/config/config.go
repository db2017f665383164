package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the complete engine configuration.
type Config struct {
	Global    GlobalConfig    `yaml:"global"`
	Engine    EngineConfig    `yaml:"engine"`
	Tiers     TiersConfig     `yaml:"tiers"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// GlobalConfig represents process-wide settings.
type GlobalConfig struct {
	LogLevel         string `yaml:"log_level"`
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// EngineConfig represents orchestration policy settings. The numeric
// thresholds are product-tuned defaults, not fixed contracts.
type EngineConfig struct {
	// CompressionThresholdBytes is the minimum canonical size before the
	// distributed tier attempts compression.
	CompressionThresholdBytes int `yaml:"compression_threshold_bytes"`

	// CompressionRatioTarget is the maximum compressed/uncompressed ratio
	// for a compressed form to be kept.
	CompressionRatioTarget float64 `yaml:"compression_ratio_target"`

	// OverflowSizeBytes routes larger payloads to the high-capacity tier.
	OverflowSizeBytes int `yaml:"overflow_size_bytes"`

	// OverflowImportance routes more important payloads to the
	// high-capacity tier as well.
	OverflowImportance float64 `yaml:"overflow_importance"`

	// DurableImportance routes the most important payloads to the cold
	// store. Entries written without a TTL always reach the cold store.
	DurableImportance float64 `yaml:"durable_importance"`

	// DefaultTTL applies to distributed-tier writes without an explicit TTL.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// HighCapacityTTL applies to high-capacity-tier writes without an
	// explicit TTL.
	HighCapacityTTL time.Duration `yaml:"high_capacity_ttl"`
}

// TiersConfig groups per-tier backend settings.
type TiersConfig struct {
	Local        LocalTierConfig   `yaml:"local"`
	Tracked      TrackedTierConfig `yaml:"tracked"`
	Distributed  RedisTierConfig   `yaml:"distributed"`
	HighCapacity HighCapacityTier  `yaml:"high_capacity"`
	Cold         ColdStoreConfig   `yaml:"cold"`
}

// LocalTierConfig represents the in-process tier bounds.
type LocalTierConfig struct {
	Capacity    int `yaml:"capacity"`
	MaxCapacity int `yaml:"max_capacity"`
}

// RedisTierConfig represents one networked key-value tier.
type RedisTierConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// TrackedTierConfig represents the mirror-backed tier and its invalidation
// feed.
type TrackedTierConfig struct {
	Redis RedisTierConfig `yaml:"redis"`

	// InvalidationChannel is the pub/sub channel carrying keys changed by
	// other processes. Empty disables the feed; the tier then degrades to a
	// plain cache that accepts staleness.
	InvalidationChannel string `yaml:"invalidation_channel"`

	// MirrorCapacity bounds the in-process mirror.
	MirrorCapacity int `yaml:"mirror_capacity"`
}

// HighCapacityTier selects and configures the overflow backend.
type HighCapacityTier struct {
	// Backend is "redis" or "s3".
	Backend string          `yaml:"backend"`
	Redis   RedisTierConfig `yaml:"redis"`
	S3      S3Config        `yaml:"s3"`
}

// S3Config represents the object-store backend settings.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	KeyPrefix string `yaml:"key_prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// ColdStoreConfig represents the durable relational tier.
type ColdStoreConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// OptimizerConfig represents the background tuning loop.
type OptimizerConfig struct {
	Interval           time.Duration `yaml:"interval"`
	TargetHitRate      float64       `yaml:"target_hit_rate"`
	LocalHitShare      float64       `yaml:"local_hit_share"`
	SweepMaxAge        time.Duration `yaml:"sweep_max_age"`
	SweepMinImportance float64       `yaml:"sweep_min_importance"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Config {
	return &Config{
		Global: GlobalConfig{
			LogLevel:         "INFO",
			MetricsNamespace: "stratacache",
		},
		Engine: EngineConfig{
			CompressionThresholdBytes: 1024,
			CompressionRatioTarget:    0.7,
			OverflowSizeBytes:         10 * 1024,
			OverflowImportance:        0.8,
			DurableImportance:         0.9,
			DefaultTTL:                time.Hour,
			HighCapacityTTL:           2 * time.Hour,
		},
		Tiers: TiersConfig{
			Local: LocalTierConfig{
				Capacity:    500,
				MaxCapacity: 2000,
			},
			Tracked: TrackedTierConfig{
				Redis: RedisTierConfig{
					Addr:         "localhost:6379",
					DB:           0,
					PoolSize:     10,
					DialTimeout:  5 * time.Second,
					ReadTimeout:  3 * time.Second,
					WriteTimeout: 3 * time.Second,
				},
				InvalidationChannel: "stratacache:invalidations",
				MirrorCapacity:      1000,
			},
			Distributed: RedisTierConfig{
				Addr:         "localhost:6379",
				DB:           1,
				PoolSize:     10,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			HighCapacity: HighCapacityTier{
				Backend: "redis",
				Redis: RedisTierConfig{
					Addr:         "localhost:6379",
					DB:           2,
					PoolSize:     10,
					DialTimeout:  5 * time.Second,
					ReadTimeout:  3 * time.Second,
					WriteTimeout: 3 * time.Second,
				},
				S3: S3Config{
					Region:    "us-east-1",
					KeyPrefix: "stratacache/",
				},
			},
			Cold: ColdStoreConfig{
				DSN:   "postgres://localhost:5432/stratacache",
				Table: "cache_entries",
			},
		},
		Optimizer: OptimizerConfig{
			Interval:           5 * time.Minute,
			TargetHitRate:      0.97,
			LocalHitShare:      0.30,
			SweepMaxAge:        30 * 24 * time.Hour,
			SweepMinImportance: 0.5,
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv applies STRATACACHE_* environment overrides.
func (c *Config) LoadFromEnv() error {
	if val := os.Getenv("STRATACACHE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}

	if val := os.Getenv("STRATACACHE_TARGET_HIT_RATE"); val != "" {
		if rate, err := strconv.ParseFloat(val, 64); err == nil {
			c.Optimizer.TargetHitRate = rate
		}
	}
	if val := os.Getenv("STRATACACHE_COMPRESSION_THRESHOLD_BYTES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Engine.CompressionThresholdBytes = n
		}
	}
	if val := os.Getenv("STRATACACHE_COMPRESSION_RATIO_TARGET"); val != "" {
		if ratio, err := strconv.ParseFloat(val, 64); err == nil {
			c.Engine.CompressionRatioTarget = ratio
		}
	}
	if val := os.Getenv("STRATACACHE_TIER0_CAPACITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Tiers.Local.Capacity = n
		}
	}
	if val := os.Getenv("STRATACACHE_TIER0_MAX_CAPACITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Tiers.Local.MaxCapacity = n
		}
	}
	if val := os.Getenv("STRATACACHE_COLD_SWEEP_MAX_AGE_DAYS"); val != "" {
		if days, err := strconv.Atoi(val); err == nil {
			c.Optimizer.SweepMaxAge = time.Duration(days) * 24 * time.Hour
		}
	}
	if val := os.Getenv("STRATACACHE_COLD_SWEEP_MIN_IMPORTANCE"); val != "" {
		if imp, err := strconv.ParseFloat(val, 64); err == nil {
			c.Optimizer.SweepMinImportance = imp
		}
	}
	if val := os.Getenv("STRATACACHE_OPTIMIZER_INTERVAL_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil {
			c.Optimizer.Interval = time.Duration(secs) * time.Second
		}
	}

	if val := os.Getenv("STRATACACHE_REDIS_ADDR"); val != "" {
		c.Tiers.Tracked.Redis.Addr = val
		c.Tiers.Distributed.Addr = val
		c.Tiers.HighCapacity.Redis.Addr = val
	}
	if val := os.Getenv("STRATACACHE_COLD_DSN"); val != "" {
		c.Tiers.Cold.DSN = val
	}
	if val := os.Getenv("STRATACACHE_S3_BUCKET"); val != "" {
		c.Tiers.HighCapacity.S3.Bucket = val
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Config) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Optimizer.TargetHitRate <= 0 || c.Optimizer.TargetHitRate > 1 {
		return fmt.Errorf("target_hit_rate must be in (0, 1]")
	}

	if c.Engine.CompressionRatioTarget <= 0 || c.Engine.CompressionRatioTarget > 1 {
		return fmt.Errorf("compression_ratio_target must be in (0, 1]")
	}

	if c.Tiers.Local.Capacity <= 0 {
		return fmt.Errorf("tier0 capacity must be greater than 0")
	}

	if c.Tiers.Local.MaxCapacity < c.Tiers.Local.Capacity {
		return fmt.Errorf("tier0 max_capacity must be >= capacity")
	}

	if c.Optimizer.SweepMinImportance < 0 || c.Optimizer.SweepMinImportance > 1 {
		return fmt.Errorf("cold_sweep_min_importance must be in [0, 1]")
	}

	backend := c.Tiers.HighCapacity.Backend
	if backend != "redis" && backend != "s3" {
		return fmt.Errorf("invalid high_capacity backend: %s (must be redis or s3)", backend)
	}
	if backend == "s3" && c.Tiers.HighCapacity.S3.Bucket == "" {
		return fmt.Errorf("high_capacity s3 backend requires a bucket")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}
