package calculator

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIntFromString is a helper to create a uint256.Int from a decimal string,
// which is necessary for numbers larger than a standard uint64.
func newIntFromString(s string) *uint256.Int {
	n, err := uint256.FromDecimal(s)
	if err != nil {
		panic("failed to parse decimal for uint256.Int")
	}
	return n
}

func TestGetAmountOut(t *testing.T) {
	usdcReserve := uint256.NewInt(100_000_000)             // 100 USDC
	wethReserve := newIntFromString("50000000000000000000") // 50 WETH

	testCases := []struct {
		name           string
		amountIn       *uint256.Int
		reserveIn      *uint256.Int
		reserveOut     *uint256.Int
		feeBps         uint64
		expectedAmount *uint256.Int
		expectedErr    error
	}{
		{
			name:           "Standard Swap (USDC -> WETH)",
			amountIn:       uint256.NewInt(1_000_000),
			reserveIn:      usdcReserve,
			reserveOut:     wethReserve,
			feeBps:         30,
			expectedAmount: newIntFromString("493579017198530649"),
		},
		{
			name:           "Standard Swap (WETH -> USDC)",
			amountIn:       newIntFromString("1000000000000000000"),
			reserveIn:      wethReserve,
			reserveOut:     usdcReserve,
			feeBps:         30,
			expectedAmount: uint256.NewInt(1955016),
		},
		{
			name:           "Swap with Different Fee",
			amountIn:       uint256.NewInt(1_000_000),
			reserveIn:      usdcReserve,
			reserveOut:     wethReserve,
			feeBps:         100,
			expectedAmount: newIntFromString("490147539360332706"),
		},
		{
			name:           "Edge Case: Zero Liquidity",
			amountIn:       uint256.NewInt(0),
			reserveIn:      uint256.NewInt(0),
			reserveOut:     uint256.NewInt(0),
			feeBps:         30,
			expectedAmount: uint256.NewInt(0),
		},
		{
			name:           "Edge Case: Full Fee",
			amountIn:       uint256.NewInt(1_000_000),
			reserveIn:      usdcReserve,
			reserveOut:     wethReserve,
			feeBps:         MaxFee,
			expectedAmount: uint256.NewInt(0),
		},
		{
			name:        "Invalid Input: Nil AmountIn",
			reserveIn:   usdcReserve,
			reserveOut:  wethReserve,
			expectedErr: ErrNilAmount,
		},
		{
			name:        "Invalid Input: Fee Above Max",
			amountIn:    uint256.NewInt(1),
			reserveIn:   usdcReserve,
			reserveOut:  wethReserve,
			feeBps:      MaxFee + 1,
			expectedErr: ErrInvalidFee,
		},
		{
			name:        "Invalid Input: Overflowing Product",
			amountIn:    new(uint256.Int).Lsh(uint256.NewInt(1), 250),
			reserveIn:   usdcReserve,
			reserveOut:  wethReserve,
			feeBps:      30,
			expectedErr: ErrOverflow,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountOut, err := GetAmountOut(tc.amountIn, tc.reserveIn, tc.reserveOut, tc.feeBps)
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, amountOut)
			assert.True(t, tc.expectedAmount.Eq(amountOut), "Expected %s, but got %s", tc.expectedAmount.Dec(), amountOut.Dec())
		})
	}
}

func TestGetAmountIn(t *testing.T) {
	usdcReserve := uint256.NewInt(100_000_000)
	wethReserve := newIntFromString("50000000000000000000")

	testCases := []struct {
		name           string
		amountOut      *uint256.Int
		reserveIn      *uint256.Int
		reserveOut     *uint256.Int
		feeBps         uint64
		expectedAmount *uint256.Int
		expectedErr    error
	}{
		{
			name:           "Standard Swap (USDC -> WETH)",
			amountOut:      newIntFromString("493579017198530649"),
			reserveIn:      usdcReserve,
			reserveOut:     wethReserve,
			feeBps:         30,
			expectedAmount: uint256.NewInt(1_000_000),
		},
		{
			name:           "Standard Swap (WETH -> USDC)",
			amountOut:      uint256.NewInt(1955016),
			reserveIn:      wethReserve,
			reserveOut:     usdcReserve,
			feeBps:         30,
			expectedAmount: newIntFromString("999999498234537320"),
		},
		{
			name:           "Exact Division Is Not Rounded Up",
			amountOut:      uint256.NewInt(500),
			reserveIn:      uint256.NewInt(1000),
			reserveOut:     uint256.NewInt(1000),
			feeBps:         0,
			expectedAmount: uint256.NewInt(1000),
		},
		{
			name:        "Invalid State: Insufficient Liquidity",
			amountOut:   newIntFromString("60000000000000000000"),
			reserveIn:   usdcReserve,
			reserveOut:  wethReserve,
			feeBps:      30,
			expectedErr: ErrInsufficientLiquidity,
		},
		{
			name:        "Invalid State: Output Equals Reserve",
			amountOut:   wethReserve,
			reserveIn:   usdcReserve,
			reserveOut:  wethReserve,
			feeBps:      30,
			expectedErr: ErrInsufficientLiquidity,
		},
		{
			name:        "Invalid State: Full Fee",
			amountOut:   uint256.NewInt(1),
			reserveIn:   usdcReserve,
			reserveOut:  wethReserve,
			feeBps:      MaxFee,
			expectedErr: ErrInsufficientLiquidity,
		},
		{
			name:        "Invalid Input: Nil AmountOut",
			reserveIn:   usdcReserve,
			reserveOut:  wethReserve,
			expectedErr: ErrNilAmount,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountIn, err := GetAmountIn(tc.amountOut, tc.reserveIn, tc.reserveOut, tc.feeBps)
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, amountIn)
			assert.True(t, tc.expectedAmount.Eq(amountIn), "Expected %s, but got %s", tc.expectedAmount.Dec(), amountIn.Dec())
		})
	}
}

func TestMulDiv(t *testing.T) {
	t.Run("should floor the quotient", func(t *testing.T) {
		got, err := MulDiv(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
		require.NoError(t, err)
		assert.Equal(t, uint64(10), got.Uint64())
	})

	t.Run("should report overflow of the intermediate product", func(t *testing.T) {
		big := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
		_, err := MulDiv(big, big, uint256.NewInt(1))
		assert.ErrorIs(t, err, ErrOverflow)
	})
}

func TestSqrt(t *testing.T) {
	assert.Equal(t, uint64(0), Sqrt(uint256.NewInt(0)).Uint64())
	assert.Equal(t, uint64(1000), Sqrt(uint256.NewInt(1_000_000)).Uint64())
	assert.Equal(t, uint64(1414), Sqrt(uint256.NewInt(2_000_000)).Uint64())
}

// --- Benchmarks ---

// result is a package-level variable to ensure the compiler does not optimize away the benchmarked function call.
var result *uint256.Int

func BenchmarkGetAmountOut(b *testing.B) {
	reserveIn := newIntFromString("1000000000000000000000") // 1,000 WETH
	reserveOut := newIntFromString("2000000000000")         // 2,000,000 USDC
	amountIn := newIntFromString("1000000000000000000")     // 1 WETH

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		amountOut, _ := GetAmountOut(amountIn, reserveIn, reserveOut, 30)
		result = amountOut
	}
}

func BenchmarkGetAmountIn(b *testing.B) {
	reserveIn := newIntFromString("1000000000000000000000")
	reserveOut := newIntFromString("2000000000000")
	amountOut := newIntFromString("1994000000")

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		amountIn, _ := GetAmountIn(amountOut, reserveIn, reserveOut, 30)
		result = amountIn
	}
}
