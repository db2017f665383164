package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stratacache/stratacache/internal/codec"
	"github.com/stratacache/stratacache/internal/config"
	"github.com/stratacache/stratacache/internal/metrics"
	cacheerr "github.com/stratacache/stratacache/pkg/errors"
	"github.com/stratacache/stratacache/pkg/types"
)

// SetOptions carries placement inputs for a write.
type SetOptions struct {
	// TTL expires the entry on the networked tiers. Zero means the caller
	// wants durable retention: tier defaults apply on the networked tiers
	// and the entry always reaches the cold store.
	TTL time.Duration

	// Importance is a caller-supplied score in [0,1] influencing placement
	// and retention.
	Importance float64
}

// Deps are the tier adapters and collaborators the orchestrator composes.
// Any remote tier or the cold store may be nil; the orchestrator simply
// skips it. Explicit construction replaces the process-wide singleton the
// engine used to be: fresh instances per test, no hidden global state.
type Deps struct {
	Local        *LocalCache
	Tracked      types.RemoteCache
	Distributed  types.RemoteCache
	HighCapacity types.RemoteCache
	Cold         types.ColdStore
	Metrics      *metrics.Collector
	Logger       *slog.Logger
}

// Orchestrator is the policy engine of the cache hierarchy: get walks the
// tiers top-down and promotes on hit, set fans out per the placement rules,
// delete fans out removals. A tier-level fault never propagates as a fatal
// error; the engine degrades toward "no cache".
type Orchestrator struct {
	cfg    config.EngineConfig
	local  *LocalCache
	cold   types.ColdStore
	flight *Coalescer

	metrics *metrics.Collector
	logger  *slog.Logger

	tracked      types.RemoteCache
	distributed  types.RemoteCache
	highCapacity types.RemoteCache

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the orchestrator and starts the background
// optimizer bound to its lifetime. An optimizer interval of zero disables
// the loop.
func NewOrchestrator(deps Deps, cfg *config.Config) *Orchestrator {
	if cfg == nil {
		cfg = config.NewDefault()
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	local := deps.Local
	if local == nil {
		local = NewLocalCache(cfg.Tiers.Local.Capacity)
	}

	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NewCollector(cfg.Global.MetricsNamespace, nil)
	}

	o := &Orchestrator{
		cfg:          cfg.Engine,
		local:        local,
		tracked:      deps.Tracked,
		distributed:  deps.Distributed,
		highCapacity: deps.HighCapacity,
		cold:         deps.Cold,
		flight:       NewCoalescer(),
		metrics:      collector,
		logger:       logger,
	}

	if cfg.Optimizer.Interval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		o.cancel = cancel

		optimizer := NewOptimizer(cfg.Optimizer, local, cfg.Tiers.Local.MaxCapacity, deps.Cold, collector, logger)
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			optimizer.Run(ctx)
		}()
	}

	return o
}

// Metrics returns the collector so callers can export or inspect it.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Get checks the tiers in order local, tracked, distributed, high-capacity,
// cold. A tier error counts as a miss for that tier only and the search
// continues. A hit at tier K promotes the value into every tier faster
// than K before returning.
func (o *Orchestrator) Get(ctx context.Context, key, tenantID string) ([]byte, error) {
	value, _, err := o.GetWithOrigin(ctx, key, tenantID)
	return value, err
}

// GetWithOrigin is Get plus the tier that produced the value.
func (o *Orchestrator) GetWithOrigin(ctx context.Context, key, tenantID string) ([]byte, types.TierID, error) {
	nk := types.NamespacedKey(tenantID, key)
	start := time.Now()

	if value, ok := o.local.Get(nk); ok {
		o.metrics.RecordHit(types.TierLocal, time.Since(start))
		return value, types.TierLocal, nil
	}

	for _, tier := range []struct {
		id    types.TierID
		cache types.RemoteCache
	}{
		{types.TierTracked, o.tracked},
		{types.TierDistributed, o.distributed},
		{types.TierHighCapacity, o.highCapacity},
	} {
		if tier.cache == nil {
			continue
		}

		value, err := tier.cache.Get(ctx, nk)
		if err != nil {
			if !cacheerr.IsNotFound(err) {
				o.logger.Warn("tier read failed, treating as miss",
					"tier", tier.id.String(), "error", err)
			}
			continue
		}

		o.metrics.RecordHit(tier.id, time.Since(start))
		o.promote(ctx, nk, value, tier.id)
		return value, tier.id, nil
	}

	if o.cold != nil {
		entry, err := o.cold.Get(ctx, key, tenantID)
		if err == nil {
			o.metrics.RecordHit(types.TierCold, time.Since(start))
			o.promote(ctx, nk, entry.Value, types.TierCold)
			return entry.Value, types.TierCold, nil
		}
		if !cacheerr.IsNotFound(err) {
			o.logger.Warn("tier read failed, treating as miss",
				"tier", types.TierCold.String(), "error", err)
		}
	}

	o.metrics.RecordMiss(time.Since(start))
	return nil, 0, cacheerr.New(cacheerr.CodeNotFound, "key not found in any tier").
		WithComponent("orchestrator").WithOperation("get")
}

// Set serializes the value to its canonical form and fans the write out:
// always to the local, tracked and distributed tiers; to the high-capacity
// tier for large or important payloads; to the cold store for the most
// important payloads and for entries written without a TTL. Tier failures
// are logged and never abort the other writes; an error is returned only
// when zero tiers accepted the write.
func (o *Orchestrator) Set(ctx context.Context, key string, value interface{}, tenantID string, opts SetOptions) error {
	plain, err := codec.Marshal(value)
	if err != nil {
		return err
	}
	return o.setCanonical(ctx, key, plain, tenantID, opts)
}

func (o *Orchestrator) setCanonical(ctx context.Context, key string, plain []byte, tenantID string, opts SetOptions) error {
	nk := types.NamespacedKey(tenantID, key)
	size := len(plain)

	distTTL := opts.TTL
	if distTTL <= 0 {
		distTTL = o.cfg.DefaultTTL
	}
	hcTTL := opts.TTL
	if hcTTL <= 0 {
		hcTTL = o.cfg.HighCapacityTTL
	}

	o.local.Set(nk, plain)
	var successes atomic.Int32
	successes.Add(1)

	var g errgroup.Group

	write := func(tier types.TierID, cache types.RemoteCache, ttl time.Duration) {
		if cache == nil {
			return
		}
		g.Go(func() error {
			if err := cache.Set(ctx, nk, plain, ttl); err != nil {
				o.logger.Warn("tier write failed",
					"tier", tier.String(), "error", err)
				return nil
			}
			successes.Add(1)
			return nil
		})
	}

	write(types.TierTracked, o.tracked, distTTL)
	write(types.TierDistributed, o.distributed, distTTL)

	if size > o.cfg.OverflowSizeBytes || opts.Importance > o.cfg.OverflowImportance {
		write(types.TierHighCapacity, o.highCapacity, hcTTL)
	}

	if o.cold != nil && (opts.Importance > o.cfg.DurableImportance || opts.TTL <= 0) {
		g.Go(func() error {
			now := time.Now().UTC()
			entry := &types.CacheEntry{
				Key:             key,
				TenantID:        tenantID,
				Value:           plain,
				CreatedAt:       now,
				LastAccessed:    now,
				SizeBytes:       int64(size),
				ImportanceScore: opts.Importance,
			}
			if err := o.cold.Upsert(ctx, entry); err != nil {
				o.logger.Warn("tier write failed",
					"tier", types.TierCold.String(), "error", err)
				return nil
			}
			successes.Add(1)
			return nil
		})
	}

	_ = g.Wait()

	if successes.Load() == 0 {
		return cacheerr.New(cacheerr.CodeConnectivity, "no tier accepted the write").
			WithComponent("orchestrator").WithOperation("set")
	}
	return nil
}

// Delete attempts removal from every tier. Returns true when at least one
// tier reported a successful removal.
func (o *Orchestrator) Delete(ctx context.Context, key, tenantID string) bool {
	nk := types.NamespacedKey(tenantID, key)

	removed := o.local.Delete(nk)

	for _, tier := range []struct {
		id    types.TierID
		cache types.RemoteCache
	}{
		{types.TierTracked, o.tracked},
		{types.TierDistributed, o.distributed},
		{types.TierHighCapacity, o.highCapacity},
	} {
		if tier.cache == nil {
			continue
		}
		ok, err := tier.cache.Delete(ctx, nk)
		if err != nil {
			o.logger.Warn("tier delete failed",
				"tier", tier.id.String(), "error", err)
			continue
		}
		removed = removed || ok
	}

	if o.cold != nil {
		ok, err := o.cold.Delete(ctx, key, tenantID)
		if err != nil {
			o.logger.Warn("tier delete failed",
				"tier", types.TierCold.String(), "error", err)
		} else {
			removed = removed || ok
		}
	}

	return removed
}

// GetOrPopulate returns the cached value or populates it, coalescing
// concurrent populations of the same key: for N concurrent callers of an
// uncached key, populate runs exactly once and all N receive the same
// result or the same error.
func (o *Orchestrator) GetOrPopulate(ctx context.Context, key, tenantID string, opts SetOptions,
	populate func(ctx context.Context) (interface{}, error)) ([]byte, error) {

	if value, err := o.Get(ctx, key, tenantID); err == nil {
		return value, nil
	}

	nk := types.NamespacedKey(tenantID, key)
	value, _, err := o.flight.Do(nk, func() ([]byte, error) {
		produced, err := populate(ctx)
		if err != nil {
			return nil, err
		}

		plain, err := codec.Marshal(produced)
		if err != nil {
			return nil, err
		}

		if err := o.setCanonical(ctx, key, plain, tenantID, opts); err != nil {
			o.logger.Warn("population write failed", "error", err)
		}
		return plain, nil
	})
	return value, err
}

// Exists reports whether any tier holds the key, without promoting it.
// Tier errors are treated as absence for that tier.
func (o *Orchestrator) Exists(ctx context.Context, key, tenantID string) bool {
	nk := types.NamespacedKey(tenantID, key)

	if _, ok := o.local.Get(nk); ok {
		return true
	}

	for _, tier := range []struct {
		id    types.TierID
		cache types.RemoteCache
	}{
		{types.TierTracked, o.tracked},
		{types.TierDistributed, o.distributed},
		{types.TierHighCapacity, o.highCapacity},
	} {
		if tier.cache == nil {
			continue
		}
		ok, err := tier.cache.Exists(ctx, nk)
		if err != nil {
			o.logger.Warn("tier existence check failed",
				"tier", tier.id.String(), "error", err)
			continue
		}
		if ok {
			return true
		}
	}

	if o.cold != nil {
		if _, err := o.cold.Get(ctx, key, tenantID); err == nil {
			return true
		}
	}
	return false
}

// Close cancels the background optimizer and waits for it to stop.
func (o *Orchestrator) Close() error {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	return nil
}

// promote writes a value discovered at tier from into every faster tier.
// Promotion is one-directional, upward only; slower tiers are never written
// on a read hit.
func (o *Orchestrator) promote(ctx context.Context, key string, value []byte, from types.TierID) {
	o.local.Set(key, value)

	for _, tier := range []struct {
		id    types.TierID
		cache types.RemoteCache
		ttl   time.Duration
	}{
		{types.TierTracked, o.tracked, o.cfg.DefaultTTL},
		{types.TierDistributed, o.distributed, o.cfg.DefaultTTL},
		{types.TierHighCapacity, o.highCapacity, o.cfg.HighCapacityTTL},
	} {
		if tier.id >= from || tier.cache == nil {
			continue
		}
		if err := tier.cache.Set(ctx, key, value, tier.ttl); err != nil {
			o.logger.Warn("promotion write failed",
				"tier", tier.id.String(), "error", err)
		}
	}
}
