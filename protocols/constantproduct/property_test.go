package constantproduct

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"pgregory.net/rapid"
)

func drawAmount(t *rapid.T, label string) *uint256.Int {
	return uint256.NewInt(rapid.Uint64Range(10_000, 1<<62).Draw(t, label))
}

// newDrawnPool seeds a pool with drawn reserves and a drawn fee.
func newDrawnPool(t *rapid.T, maxFee uint64) *fixture {
	fee := rapid.Uint64Range(0, maxFee).Draw(t, "fee")
	f := newFixtureWithConfig(t, Config{ID: 1, Address: poolAddress, TokenA: tokenA, TokenB: tokenB, SwapFeeBps: fee})
	f.addLiquidity(t, alice, drawAmount(t, "reserveA"), drawAmount(t, "reserveB"))
	return f
}

func TestSwapNeverDecreasesK(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newDrawnPool(t, MaxFee)
		tokenIn := rapid.SampledFrom([]common.Address{tokenA, tokenB}).Draw(t, "tokenIn")
		amountIn := drawAmount(t, "amountIn")

		reserveA, reserveB := f.pool.GetNativeReserves()
		kBefore := new(uint256.Int).Mul(reserveA, reserveB)

		f.deposit(t, bob, tokenIn, amountIn)
		if _, err := f.pool.Swap(tokenIn, bob); err != nil {
			t.Fatalf("swap failed: %v", err)
		}

		reserveA, reserveB = f.pool.GetNativeReserves()
		if k := new(uint256.Int).Mul(reserveA, reserveB); k.Lt(kBefore) {
			t.Fatalf("k decreased from %s to %s", kBefore.Dec(), k.Dec())
		}
	})
}

func TestQuoteRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// a 100% fee has no inverse
		f := newDrawnPool(t, MaxFee-1)
		_, reserveB := f.pool.GetNativeReserves()

		x := drawAmount(t, "amountIn")
		out, err := f.pool.GetAmountOut(tokenA, x)
		if err != nil {
			t.Fatalf("GetAmountOut: %v", err)
		}
		back, err := f.pool.GetAmountIn(tokenB, out)
		if err != nil {
			t.Fatalf("GetAmountIn: %v", err)
		}
		if back.Gt(x) {
			t.Fatalf("buying %s back costs %s, more than the %s sold", out.Dec(), back.Dec(), x.Dec())
		}

		y := uint256.NewInt(rapid.Uint64Range(1, reserveB.Uint64()-1).Draw(t, "amountOut"))
		in, err := f.pool.GetAmountIn(tokenB, y)
		if err != nil {
			t.Fatalf("GetAmountIn: %v", err)
		}
		got, err := f.pool.GetAmountOut(tokenA, in)
		if err != nil {
			t.Fatalf("GetAmountOut: %v", err)
		}
		if got.Lt(y) {
			t.Fatalf("paying %s bought %s, less than the %s quoted", in.Dec(), got.Dec(), y.Dec())
		}
	})
}

func TestFailedFlashSwapLeavesNoTrace(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newDrawnPool(t, MaxFee)
		amountIn := drawAmount(t, "amountIn")
		repaid := uint256.NewInt(rapid.Uint64Range(0, amountIn.Uint64()-1).Draw(t, "repaid"))

		before := f.pool.View()
		balanceA := f.ledger.BalanceOf(tokenA, bob)
		balanceB := f.ledger.BalanceOf(tokenB, bob)

		callee := CalleeFunc(func(ctx context.Context, data []byte) error {
			return f.ledger.Transfer(tokenA, bob, poolAddress, repaid)
		})
		if _, err := f.pool.FlashSwap(context.Background(), callee, tokenA, bob, amountIn, nil); err == nil {
			t.Fatalf("underpaid flash swap of %s (repaid %s) succeeded", amountIn.Dec(), repaid.Dec())
		}

		after := f.pool.View()
		if after.ReserveA.Cmp(before.ReserveA) != 0 || after.ReserveB.Cmp(before.ReserveB) != 0 {
			t.Fatalf("reserves changed by a failed flash swap")
		}
		if !f.ledger.BalanceOf(tokenA, bob).Eq(balanceA) || !f.ledger.BalanceOf(tokenB, bob).Eq(balanceB) {
			t.Fatalf("balances changed by a failed flash swap")
		}
	})
}

func TestMintBurnNeverProfits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newDrawnPool(t, MaxFee)
		amountA, amountB := drawAmount(t, "depositA"), drawAmount(t, "depositB")

		f.deposit(t, bob, tokenA, amountA)
		f.deposit(t, bob, tokenB, amountB)
		shares, err := f.pool.Mint(bob)
		if err != nil {
			// tiny deposits into a large pool can be worth zero shares
			return
		}
		if err := f.pool.TransferShares(bob, poolAddress, shares); err != nil {
			t.Fatalf("TransferShares: %v", err)
		}
		outA, outB, err := f.pool.Burn(bob)
		if err != nil {
			return
		}
		if outA.Gt(amountA) || outB.Gt(amountB) {
			t.Fatalf("round trip paid (%s, %s) for (%s, %s)", outA.Dec(), outB.Dec(), amountA.Dec(), amountB.Dec())
		}
	})
}
