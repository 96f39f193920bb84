package constantproduct

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeployData(t *testing.T) {
	t.Run("should decode what it encodes", func(t *testing.T) {
		data, err := EncodeDeployData(tokenB, tokenA, 30, true)
		require.NoError(t, err)
		assert.Len(t, data, 4*32)

		cfg, err := DecodeDeployData(data)
		require.NoError(t, err)
		assert.Equal(t, Config{TokenA: tokenB, TokenB: tokenA, SwapFeeBps: 30, TwapEnabled: true}, cfg)
	})

	t.Run("should reject a truncated payload", func(t *testing.T) {
		data, err := EncodeDeployData(tokenA, tokenB, 30, false)
		require.NoError(t, err)

		_, err = DecodeDeployData(data[:64])
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("should reject a fee wider than 64 bits", func(t *testing.T) {
		data, err := deployArgs.Pack(tokenA, tokenB, new(uint256.Int).Lsh(uint256.NewInt(1), 64).ToBig(), false)
		require.NoError(t, err)

		_, err = DecodeDeployData(data)
		assert.ErrorIs(t, err, ErrInvalidSwapFee)
	})
}

func TestPayloadEntryPoints(t *testing.T) {
	t.Run("should quote through encoded payloads", func(t *testing.T) {
		f := newFixture(t)
		f.addLiquidity(t, alice, eth(1), eth(4))

		data, err := EncodeQuote(tokenA, centiEther)
		require.NoError(t, err)
		out, err := f.pool.GetAmountOutData(data)
		require.NoError(t, err)
		assert.Equal(t, newIntFromString("39486321375882451"), out)

		data, err = EncodeQuote(tokenC, new(uint256.Int))
		require.NoError(t, err)
		_, err = f.pool.GetAmountOutData(data)
		assert.ErrorIs(t, err, ErrInvalidInputToken)
		_, err = f.pool.GetAmountInData(data)
		assert.ErrorIs(t, err, ErrInvalidOutputToken)
	})

	t.Run("should mint, swap and burn through encoded payloads", func(t *testing.T) {
		f := newFixture(t)
		toAlice, err := EncodeRecipient(alice)
		require.NoError(t, err)

		_, err = f.pool.MintData(toAlice)
		assert.ErrorIs(t, err, ErrInvalidAmounts)

		f.deposit(t, alice, tokenA, eth(1))
		f.deposit(t, alice, tokenB, eth(4))
		shares, err := f.pool.MintData(toAlice)
		require.NoError(t, err)

		swap, err := EncodeTrade(tokenA, bob)
		require.NoError(t, err)
		f.deposit(t, bob, tokenA, centiEther)
		out, err := f.pool.SwapData(swap)
		require.NoError(t, err)
		assert.Equal(t, newIntFromString("39486321375882451"), out)

		half := new(uint256.Int).Div(shares, uint256.NewInt(2))
		require.NoError(t, f.pool.TransferShares(alice, poolAddress, half))
		burnSingle, err := EncodeTrade(tokenB, alice)
		require.NoError(t, err)
		_, err = f.pool.BurnSingleData(burnSingle)
		require.NoError(t, err)

		require.NoError(t, f.pool.TransferShares(alice, poolAddress, f.pool.BalanceOf(alice)))
		amountA, amountB, err := f.pool.BurnData(toAlice)
		require.NoError(t, err)
		assert.False(t, amountA.IsZero())
		assert.False(t, amountB.IsZero())
		assert.True(t, f.pool.BalanceOf(alice).IsZero())
	})

	t.Run("should flash swap through an encoded payload", func(t *testing.T) {
		f := newFixture(t)
		f.addLiquidity(t, alice, eth(1), eth(4))

		data, err := EncodeFlashSwap(tokenA, bob, centiEther, []byte{0xca, 0xfe})
		require.NoError(t, err)

		var got []byte
		callee := CalleeFunc(func(ctx context.Context, data []byte) error {
			got = data
			return f.ledger.Transfer(tokenA, bob, poolAddress, centiEther)
		})
		out, err := f.pool.FlashSwapData(context.Background(), callee, data)
		require.NoError(t, err)
		assert.Equal(t, newIntFromString("39486321375882451"), out)
		assert.Equal(t, []byte{0xca, 0xfe}, got)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.pool.MintData([]byte{0x01})
		assert.ErrorIs(t, err, ErrInvalidPayload)
		_, err = f.pool.SwapData(common.Address{}.Bytes())
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}
