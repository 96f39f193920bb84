package constantproduct

import (
	"fmt"
	"math/big"
	"sort"
)

// deepCopyPool creates a PoolView with its own *big.Int values so that patched
// states never share memory with their inputs.
func deepCopyPool(p PoolView) PoolView {
	c := p
	c.ReserveA = copyBig(p.ReserveA)
	c.ReserveB = copyBig(p.ReserveB)
	c.TotalSupply = copyBig(p.TotalSupply)
	c.KLast = copyBig(p.KLast)
	c.PriceACumulativeLast = copyBig(p.PriceACumulativeLast)
	c.PriceBCumulativeLast = copyBig(p.PriceBCumulativeLast)
	return c
}

func copyBig(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

// Patcher applies diff to prevState and returns the new state ordered by pool ID.
// Updating or deleting an unknown pool, or adding an existing one, is an error.
func Patcher(prevState []PoolView, diff PoolSystemDiff) ([]PoolView, error) {
	pools := make(map[uint64]PoolView, len(prevState))
	for _, pool := range prevState {
		pools[pool.ID] = deepCopyPool(pool)
	}

	for _, id := range diff.Deletions {
		if _, ok := pools[id]; !ok {
			return nil, fmt.Errorf("cannot delete pool %d: not in state", id)
		}
		delete(pools, id)
	}
	for _, pool := range diff.Updates {
		if _, ok := pools[pool.ID]; !ok {
			return nil, fmt.Errorf("cannot update pool %d: not in state", pool.ID)
		}
		pools[pool.ID] = deepCopyPool(pool)
	}
	for _, pool := range diff.Additions {
		if _, ok := pools[pool.ID]; ok {
			return nil, fmt.Errorf("cannot add pool %d: already in state", pool.ID)
		}
		pools[pool.ID] = deepCopyPool(pool)
	}

	state := make([]PoolView, 0, len(pools))
	for _, pool := range pools {
		state = append(state, pool)
	}
	sort.Slice(state, func(i, j int) bool { return state[i].ID < state[j].ID })
	return state, nil
}
