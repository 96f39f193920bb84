package constantproduct

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffer(t *testing.T) {
	pool1Old := PoolView{ID: 1, ReserveA: big.NewInt(1000), ReserveB: big.NewInt(2000), TotalSupply: big.NewInt(1414)}
	pool2Old := PoolView{ID: 2, ReserveA: big.NewInt(3000), ReserveB: big.NewInt(4000), TotalSupply: big.NewInt(3464)}
	pool3Old := PoolView{ID: 3, ReserveA: big.NewInt(5000), ReserveB: big.NewInt(6000), TotalSupply: big.NewInt(5477)}

	t.Run("should identify additions correctly", func(t *testing.T) {
		diff := Differ([]PoolView{pool1Old}, []PoolView{pool1Old, pool2Old})

		require.Len(t, diff.Additions, 1)
		assert.Equal(t, pool2Old.ID, diff.Additions[0].ID)
		assert.Empty(t, diff.Updates)
		assert.Empty(t, diff.Deletions)
	})

	t.Run("should identify deletions correctly", func(t *testing.T) {
		diff := Differ([]PoolView{pool1Old, pool2Old}, []PoolView{pool1Old})

		assert.Empty(t, diff.Additions)
		assert.Empty(t, diff.Updates)
		assert.Equal(t, []uint64{2}, diff.Deletions)
	})

	t.Run("should identify updates to any mutable field", func(t *testing.T) {
		mutations := map[string]func(p *PoolView){
			"reserveA":    func(p *PoolView) { p.ReserveA = big.NewInt(1001) },
			"reserveB":    func(p *PoolView) { p.ReserveB = big.NewInt(2001) },
			"totalSupply": func(p *PoolView) { p.TotalSupply = big.NewInt(1) },
			"kLast":       func(p *PoolView) { p.KLast = big.NewInt(2_000_000) },
			"priceA":      func(p *PoolView) { p.PriceACumulativeLast = big.NewInt(7) },
			"timestamp":   func(p *PoolView) { p.BlockTimestampLast = 9 },
		}
		for name, mutate := range mutations {
			updated := deepCopyPool(pool1Old)
			mutate(&updated)

			diff := Differ([]PoolView{pool1Old}, []PoolView{updated})
			require.Len(t, diff.Updates, 1, name)
			assert.Equal(t, updated, diff.Updates[0], name)
		}
	})

	t.Run("should treat nil and zero as equal", func(t *testing.T) {
		withZero := deepCopyPool(pool1Old)
		withZero.KLast = new(big.Int)

		diff := Differ([]PoolView{pool1Old}, []PoolView{withZero})
		assert.True(t, diff.IsEmpty())
	})

	t.Run("should handle a mix of additions, updates, and deletions", func(t *testing.T) {
		pool1Updated := PoolView{ID: 1, ReserveA: big.NewInt(1001), ReserveB: big.NewInt(2000), TotalSupply: big.NewInt(1414)}
		pool4New := PoolView{ID: 4, ReserveA: big.NewInt(7000), ReserveB: big.NewInt(8000)}

		diff := Differ([]PoolView{pool1Old, pool2Old, pool3Old}, []PoolView{pool1Updated, pool2Old, pool4New})

		require.Len(t, diff.Additions, 1)
		assert.Equal(t, pool4New.ID, diff.Additions[0].ID)
		require.Len(t, diff.Updates, 1)
		assert.Equal(t, pool1Updated.ID, diff.Updates[0].ID)
		assert.Equal(t, []uint64{3}, diff.Deletions)
	})

	t.Run("should produce an empty diff when there are no changes", func(t *testing.T) {
		state := []PoolView{pool1Old, pool2Old}
		assert.True(t, Differ(state, state).IsEmpty())
	})
}
