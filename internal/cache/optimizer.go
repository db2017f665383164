package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/stratacache/stratacache/internal/config"
	"github.com/stratacache/stratacache/internal/metrics"
	"github.com/stratacache/stratacache/pkg/types"
)

// Optimizer is the periodic tuning loop. Each pass it compares the observed
// hit rate against the target, grows the local tier when too few hits land
// there, and sweeps stale low-importance entries out of the cold store. It
// holds no goroutine state of its own; the caller owns the context and the
// goroutine running it.
type Optimizer struct {
	cfg         config.OptimizerConfig
	local       *LocalCache
	maxCapacity int
	cold        types.ColdStore
	metrics     *metrics.Collector
	logger      *slog.Logger
}

// NewOptimizer creates an Optimizer over the given tiers.
func NewOptimizer(cfg config.OptimizerConfig, local *LocalCache, maxCapacity int, cold types.ColdStore, collector *metrics.Collector, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	if maxCapacity <= 0 {
		maxCapacity = local.Capacity()
	}
	return &Optimizer{
		cfg:         cfg,
		local:       local,
		maxCapacity: maxCapacity,
		cold:        cold,
		metrics:     collector,
		logger:      logger,
	}
}

// Run executes passes every interval until the context is cancelled. A
// failed pass is logged and the loop continues.
func (o *Optimizer) Run(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Optimizer) tick(ctx context.Context) {
	snap := o.metrics.Snapshot()

	if snap.TotalHits+snap.Misses > 0 && snap.HitRate < o.cfg.TargetHitRate {
		o.logger.Info("hit rate below target",
			"hit_rate", snap.HitRate,
			"target", o.cfg.TargetHitRate,
		)
	}

	if snap.TotalHits > 0 && snap.HitShare(types.TierLocal) < o.cfg.LocalHitShare {
		o.growLocal()
	}

	if o.cold != nil {
		removed, err := o.cold.Sweep(ctx, o.cfg.SweepMaxAge, o.cfg.SweepMinImportance)
		if err != nil {
			o.logger.Warn("cold store sweep failed", "error", err)
		} else if removed > 0 {
			o.logger.Info("cold store sweep removed entries", "removed", removed)
		}
	}
}

// growLocal doubles the local tier capacity, bounded by the configured
// maximum.
func (o *Optimizer) growLocal() {
	current := o.local.Capacity()
	next := current * 2
	if next > o.maxCapacity {
		next = o.maxCapacity
	}
	if next <= current {
		return
	}

	o.local.Resize(next)
	o.logger.Info("local tier capacity increased",
		"from", current,
		"to", next,
	)
}
