// Package types defines the core data model and capability interfaces of
// the tiered caching engine.
//
// The engine composes five tiers with distinct latency, capacity and
// durability profiles:
//
//	Tier 0 (local)         in-process LRU, no network dependency
//	Tier 1 (tracked)       local mirror of a remote store, push invalidation
//	Tier 2 (distributed)   networked key-value store with per-entry TTL
//	Tier 3 (high_capacity) overflow store, mandatory compression
//	Tier 4 (cold)          durable relational persistence
//
// Each tier is consumed through a capability interface (LocalCache,
// RemoteCache, ColdStore) so the orchestration logic stays backend-agnostic
// and independently testable with fake tier implementations.
//
// Tenant isolation is enforced at the key level: every tier except the cold
// store addresses entries by NamespacedKey(tenant, key); the cold store keys
// on (cache_key, tenant_id) columns directly.
package types
