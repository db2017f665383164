package types

import (
	"context"
	"time"
)

// LocalCache is the in-process tier (Tier 0). It has no network dependency
// and no error conditions other than "not found"; overflow is handled
// internally by eviction.
type LocalCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string) bool
	Clear()
	Len() int
	Resize(capacity int)
	Stats() CacheStats
}

// RemoteCache is the capability contract for the networked tiers (Tiers
// 1-3). Values are opaque bytes; serialization and compression happen in
// the adapter. TTL is mandatory; the orchestrator supplies defaults.
type RemoteCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ColdStore is the durable relational tier (Tier 4), keyed on
// (cache_key, tenant_id).
type ColdStore interface {
	Get(ctx context.Context, key, tenantID string) (*CacheEntry, error)
	Upsert(ctx context.Context, entry *CacheEntry) error
	Delete(ctx context.Context, key, tenantID string) (bool, error)

	// Sweep removes entries older than maxAge AND less important than
	// minImportance. Both conditions must hold; an old-but-important entry
	// survives. Returns the number of entries removed.
	Sweep(ctx context.Context, maxAge time.Duration, minImportance float64) (int64, error)
}
