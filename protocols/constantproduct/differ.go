package constantproduct

import "math/big"

// PoolSystemDiff lists the pools added, changed and removed between two states.
type PoolSystemDiff struct {
	Additions []PoolView `json:"additions,omitempty"`
	Updates   []PoolView `json:"updates,omitempty"`
	Deletions []uint64   `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d PoolSystemDiff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}

// Differ computes the changes from old to new, keyed by pool ID.
// Only the mutable fields are compared; token pair and fee never change after creation.
func Differ(old, new []PoolView) PoolSystemDiff {
	oldPools := make(map[uint64]PoolView, len(old))
	for _, pool := range old {
		oldPools[pool.ID] = pool
	}

	var diff PoolSystemDiff
	seen := make(map[uint64]struct{}, len(new))
	for _, pool := range new {
		seen[pool.ID] = struct{}{}
		prev, exists := oldPools[pool.ID]
		if !exists {
			diff.Additions = append(diff.Additions, pool)
			continue
		}
		if changed(prev, pool) {
			diff.Updates = append(diff.Updates, pool)
		}
	}

	for _, pool := range old {
		if _, exists := seen[pool.ID]; !exists {
			diff.Deletions = append(diff.Deletions, pool.ID)
		}
	}
	return diff
}

func changed(a, b PoolView) bool {
	return !bigEqual(a.ReserveA, b.ReserveA) ||
		!bigEqual(a.ReserveB, b.ReserveB) ||
		!bigEqual(a.TotalSupply, b.TotalSupply) ||
		!bigEqual(a.KLast, b.KLast) ||
		!bigEqual(a.PriceACumulativeLast, b.PriceACumulativeLast) ||
		!bigEqual(a.PriceBCumulativeLast, b.PriceBCumulativeLast) ||
		a.BlockTimestampLast != b.BlockTimestampLast
}

// bigEqual treats nil as zero.
func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return (a == nil || a.Sign() == 0) && (b == nil || b.Sign() == 0)
	}
	return a.Cmp(b) == 0
}
