// Package cache contains the tier adapters and the orchestrator that
// composes them into a single five-tier hierarchy: an in-process LRU, a
// tracked remote cache with a push-invalidated mirror, a distributed Redis
// tier, a high-capacity always-compressed tier, and a relational cold
// store. The orchestrator owns placement, promotion, request coalescing
// and the background optimizer.
package cache
