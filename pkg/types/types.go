package types

import (
	"fmt"
	"time"
)

// TierID identifies one level of the cache hierarchy, ordered fastest to
// slowest.
type TierID int

const (
	TierLocal        TierID = iota // in-process LRU
	TierTracked                    // local mirror of a remote store with push invalidation
	TierDistributed                // networked key-value store
	TierHighCapacity               // overflow store, mandatory compression
	TierCold                       // durable relational store
)

// TierCount is the number of levels in the hierarchy.
const TierCount = 5

// String returns the symbolic tier name used in metrics labels.
func (t TierID) String() string {
	switch t {
	case TierLocal:
		return "local"
	case TierTracked:
		return "tracked"
	case TierDistributed:
		return "distributed"
	case TierHighCapacity:
		return "high_capacity"
	case TierCold:
		return "cold"
	default:
		return fmt.Sprintf("tier_%d", int(t))
	}
}

// TierDescriptor holds static metadata about a tier. It is informational:
// classification and metrics labeling only, never enforcement. Each tier
// adapter enforces its own bounds.
type TierDescriptor struct {
	ID            TierID        `json:"id"`
	Name          string        `json:"name"`
	TargetLatency time.Duration `json:"target_latency"`
	Capacity      int64         `json:"capacity"`
}

// CacheEntry represents one cached value together with its placement and
// retention metadata.
type CacheEntry struct {
	Key              string    `json:"key"`
	TenantID         string    `json:"tenant_id"`
	Value            []byte    `json:"value"`
	CreatedAt        time.Time `json:"created_at"`
	LastAccessed     time.Time `json:"last_accessed"`
	AccessCount      int64     `json:"access_count"`
	SizeBytes        int64     `json:"size_bytes"`
	TierOrigin       TierID    `json:"tier_origin"`
	CompressionRatio float64   `json:"compression_ratio,omitempty"`
	ImportanceScore  float64   `json:"importance_score"`
}

// CacheStats represents local cache performance statistics.
type CacheStats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Entries   int     `json:"entries"`
	Capacity  int     `json:"capacity"`
	HitRate   float64 `json:"hit_rate"`
}

// NamespacedKey builds the composite key used by every tier except the cold
// store, which keys on (key, tenant) columns directly. Two tenants never
// share a key namespace.
func NamespacedKey(tenantID, key string) string {
	return tenantID + ":" + key
}
