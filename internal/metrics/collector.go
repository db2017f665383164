package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stratacache/stratacache/pkg/types"
)

// DefaultSmoothing is the exponential moving average factor for latency
// estimates.
const DefaultSmoothing = 0.1

// Collector records per-tier hit counters and smoothed latency estimates,
// plus a separate miss latency unlabeled by tier. It feeds the background
// optimizer and exports to a prometheus registry when one is provided.
type Collector struct {
	mu          sync.Mutex
	alpha       float64
	tierHits    [types.TierCount]uint64
	tierLatency [types.TierCount]float64 // seconds, EMA
	tierSeen    [types.TierCount]bool
	misses      uint64
	missLatency float64
	missSeen    bool

	hitCounters *prometheus.CounterVec
	missCounter prometheus.Counter
	latencyEMA  *prometheus.GaugeVec
	hitRate     prometheus.Gauge
}

// Snapshot is a point-in-time view of the collector for the optimizer and
// external observability.
type Snapshot struct {
	TierHits    map[types.TierID]uint64
	TierLatency map[types.TierID]time.Duration
	TotalHits   uint64
	Misses      uint64
	HitRate     float64
	MissLatency time.Duration
}

// NewCollector creates a Collector. reg may be nil to skip prometheus
// registration (tests, embedded use).
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	c := &Collector{alpha: DefaultSmoothing}

	c.hitCounters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hits_total",
			Help:      "Cache hits by tier",
		},
		[]string{"tier"},
	)
	c.missCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misses_total",
			Help:      "Cache misses across all tiers",
		},
	)
	c.latencyEMA = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "Smoothed per-tier hit latency (EMA)",
		},
		[]string{"tier"},
	)
	c.hitRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hit_rate",
			Help:      "Aggregate hit rate across all tiers",
		},
	)

	if reg != nil {
		reg.MustRegister(c.hitCounters, c.missCounter, c.latencyEMA, c.hitRate)
	}

	return c
}

// RecordHit records a hit at the given tier with its observed latency.
func (c *Collector) RecordHit(tier types.TierID, latency time.Duration) {
	if tier < 0 || int(tier) >= types.TierCount {
		return
	}

	c.mu.Lock()
	c.tierHits[tier]++
	c.tierLatency[tier] = c.smooth(c.tierLatency[tier], latency, c.tierSeen[tier])
	c.tierSeen[tier] = true
	rate := c.hitRateLocked()
	c.mu.Unlock()

	c.hitCounters.WithLabelValues(tier.String()).Inc()
	c.latencyEMA.WithLabelValues(tier.String()).Set(c.tierLatencySeconds(tier))
	c.hitRate.Set(rate)
}

// RecordMiss records an all-tiers miss with its observed latency.
func (c *Collector) RecordMiss(latency time.Duration) {
	c.mu.Lock()
	c.misses++
	c.missLatency = c.smooth(c.missLatency, latency, c.missSeen)
	c.missSeen = true
	rate := c.hitRateLocked()
	c.mu.Unlock()

	c.missCounter.Inc()
	c.hitRate.Set(rate)
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		TierHits:    make(map[types.TierID]uint64, types.TierCount),
		TierLatency: make(map[types.TierID]time.Duration, types.TierCount),
		Misses:      c.misses,
		MissLatency: time.Duration(c.missLatency * float64(time.Second)),
	}
	for i := 0; i < types.TierCount; i++ {
		tier := types.TierID(i)
		snap.TierHits[tier] = c.tierHits[i]
		snap.TierLatency[tier] = time.Duration(c.tierLatency[i] * float64(time.Second))
		snap.TotalHits += c.tierHits[i]
	}
	snap.HitRate = c.hitRateLocked()

	return snap
}

// HitShare returns the fraction of total hits served by the given tier.
func (s Snapshot) HitShare(tier types.TierID) float64 {
	if s.TotalHits == 0 {
		return 0
	}
	return float64(s.TierHits[tier]) / float64(s.TotalHits)
}

func (c *Collector) smooth(current float64, latency time.Duration, seen bool) float64 {
	observed := latency.Seconds()
	if !seen {
		return observed
	}
	return c.alpha*observed + (1-c.alpha)*current
}

func (c *Collector) hitRateLocked() float64 {
	var hits uint64
	for i := 0; i < types.TierCount; i++ {
		hits += c.tierHits[i]
	}
	total := hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (c *Collector) tierLatencySeconds(tier types.TierID) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tierLatency[tier]
}
