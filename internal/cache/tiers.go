package cache

import (
	"time"

	"github.com/stratacache/stratacache/pkg/types"
)

// TierTable is the static descriptor table for the five tiers. It is used
// for metrics labeling and capacity reasoning only; each tier adapter
// enforces its own bounds.
var TierTable = [types.TierCount]types.TierDescriptor{
	{
		ID:            types.TierLocal,
		Name:          "local",
		TargetLatency: 100 * time.Microsecond,
		Capacity:      2_000,
	},
	{
		ID:            types.TierTracked,
		Name:          "tracked",
		TargetLatency: 500 * time.Microsecond,
		Capacity:      50_000,
	},
	{
		ID:            types.TierDistributed,
		Name:          "distributed",
		TargetLatency: 2 * time.Millisecond,
		Capacity:      1_000_000,
	},
	{
		ID:            types.TierHighCapacity,
		Name:          "high_capacity",
		TargetLatency: 10 * time.Millisecond,
		Capacity:      10_000_000,
	},
	{
		ID:            types.TierCold,
		Name:          "cold",
		TargetLatency: 50 * time.Millisecond,
		Capacity:      100_000_000,
	},
}

// Descriptor returns the static metadata for a tier.
func Descriptor(tier types.TierID) types.TierDescriptor {
	return TierTable[tier]
}
