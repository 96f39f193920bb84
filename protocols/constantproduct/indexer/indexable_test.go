package indexer

import (
	"math/big"
	"testing"

	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexableConstantProductSystem(t *testing.T) {
	tokenA := common.HexToAddress("0x01")
	tokenB := common.HexToAddress("0x02")
	tokenC := common.HexToAddress("0x03")

	testPools := []constantproduct.PoolView{
		{ID: 101, Address: common.HexToAddress("0xaa"), TokenA: tokenA, TokenB: tokenB, ReserveA: big.NewInt(1000), ReserveB: big.NewInt(2000)},
		{ID: 102, Address: common.HexToAddress("0xbb"), TokenA: tokenB, TokenB: tokenC, ReserveA: big.NewInt(3000), ReserveB: big.NewInt(4000)},
	}

	indexer := New().Index(testPools)
	require.NotNil(t, indexer)

	t.Run("Successful Lookups", func(t *testing.T) {
		pool, found := indexer.GetByID(101)
		assert.True(t, found, "Pool should be found by ID 101")
		assert.Equal(t, tokenA, pool.TokenA)
		assert.Equal(t, int64(1000), pool.ReserveA.Int64())

		pool, found = indexer.GetByAddress(common.HexToAddress("0xbb"))
		assert.True(t, found)
		assert.Equal(t, uint64(102), pool.ID)
	})

	t.Run("Token Lookups", func(t *testing.T) {
		assert.Len(t, indexer.GetByToken(tokenB), 2)

		pools := indexer.GetByToken(tokenC)
		require.Len(t, pools, 1)
		assert.Equal(t, uint64(102), pools[0].ID)

		assert.Empty(t, indexer.GetByToken(common.HexToAddress("0x04")))
	})

	t.Run("Not Found Lookups", func(t *testing.T) {
		_, found := indexer.GetByID(999)
		assert.False(t, found, "Should not find a pool with ID 999")
		_, found = indexer.GetByAddress(common.HexToAddress("0xcc"))
		assert.False(t, found)
	})

	t.Run("All Method", func(t *testing.T) {
		allPools := indexer.All()
		assert.Len(t, allPools, 2, "All() should return 2 pools")

		allPools[0].SwapFeeBps = 99
		originalPool, _ := indexer.GetByID(101)
		assert.Zero(t, originalPool.SwapFeeBps, "Modifying the returned slice should not affect the internal state")
	})

	t.Run("Edge Case - Nil Slice", func(t *testing.T) {
		nilIndexer := NewIndexableConstantProductSystem(nil)
		require.NotNil(t, nilIndexer)

		_, found := nilIndexer.GetByID(1)
		assert.False(t, found)

		allPools := nilIndexer.All()
		assert.Len(t, allPools, 0)
		assert.NotNil(t, allPools, "All() should return an empty slice, not nil")
	})
}
