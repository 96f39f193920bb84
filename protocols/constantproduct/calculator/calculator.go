package calculator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

// MaxFee is 100% expressed in basis points.
const MaxFee = 10000

var (
	// basisPointDivisor is a constant representing 100% in basis points (10000).
	basisPointDivisor = uint256.NewInt(MaxFee)

	one = uint256.NewInt(1)

	// ErrNilAmount is returned when a nil pointer is passed for an amount.
	ErrNilAmount = errors.New("nil pointer passed as amount")
	// ErrInvalidFee is returned when a fee above MaxFee reaches the math.
	ErrInvalidFee = errors.New("fee exceeds 10000 basis points")
	// ErrOverflow is returned when an intermediate product does not fit in 256 bits.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrInsufficientLiquidity is returned when an amountOut is requested that is greater than or equal to the available reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")
)

// Calculator holds reusable uint256 scratch values to avoid allocations during calculations.
// Instances are NOT safe for concurrent use by themselves; they are handed out by calculatorPool.
type Calculator struct {
	feeMultiplier   uint256.Int
	amountInWithFee uint256.Int
	numerator       uint256.Int
	denominator     uint256.Int
	remainder       uint256.Int
}

var calculatorPool = sync.Pool{
	New: func() any {
		return new(Calculator)
	},
}

// GetAmountOut returns the output of trading amountIn against (reserveIn, reserveOut)
// with feeBps deducted from the input:
//
//	amountOut = amountIn*(10000-fee)*reserveOut / (reserveIn*10000 + amountIn*(10000-fee))
//
// An empty denominator yields zero.
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)
	return calc.getAmountOut(amountIn, reserveIn, reserveOut, feeBps)
}

// GetAmountIn returns the smallest input that buys amountOut from (reserveIn, reserveOut):
//
//	amountIn = ceil(reserveIn*amountOut*10000 / ((reserveOut-amountOut)*(10000-fee)))
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)
	return calc.getAmountIn(amountOut, reserveIn, reserveOut, feeBps)
}

func (c *Calculator) getAmountOut(amountIn, reserveIn, reserveOut *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return nil, ErrNilAmount
	}
	if feeBps > MaxFee {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFee, feeBps)
	}

	c.feeMultiplier.SetUint64(MaxFee - feeBps)
	if _, overflow := c.amountInWithFee.MulOverflow(amountIn, &c.feeMultiplier); overflow {
		return nil, fmt.Errorf("%w: amountIn * feeMultiplier", ErrOverflow)
	}
	if _, overflow := c.numerator.MulOverflow(&c.amountInWithFee, reserveOut); overflow {
		return nil, fmt.Errorf("%w: amountInWithFee * reserveOut", ErrOverflow)
	}
	if _, overflow := c.denominator.MulOverflow(reserveIn, basisPointDivisor); overflow {
		return nil, fmt.Errorf("%w: reserveIn * 10000", ErrOverflow)
	}
	if _, overflow := c.denominator.AddOverflow(&c.denominator, &c.amountInWithFee); overflow {
		return nil, fmt.Errorf("%w: denominator", ErrOverflow)
	}

	if c.denominator.IsZero() {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Div(&c.numerator, &c.denominator), nil
}

func (c *Calculator) getAmountIn(amountOut, reserveIn, reserveOut *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	if amountOut == nil || reserveIn == nil || reserveOut == nil {
		return nil, ErrNilAmount
	}
	if feeBps > MaxFee {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFee, feeBps)
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("%w: requested amountOut (%s) is >= reserveOut (%s)", ErrInsufficientLiquidity, amountOut.Dec(), reserveOut.Dec())
	}
	if feeBps == MaxFee {
		return nil, fmt.Errorf("%w: swap fee consumes the entire input", ErrInsufficientLiquidity)
	}

	if _, overflow := c.numerator.MulOverflow(reserveIn, amountOut); overflow {
		return nil, fmt.Errorf("%w: reserveIn * amountOut", ErrOverflow)
	}
	if _, overflow := c.numerator.MulOverflow(&c.numerator, basisPointDivisor); overflow {
		return nil, fmt.Errorf("%w: numerator * 10000", ErrOverflow)
	}

	c.feeMultiplier.SetUint64(MaxFee - feeBps)
	c.denominator.Sub(reserveOut, amountOut)
	if _, overflow := c.denominator.MulOverflow(&c.denominator, &c.feeMultiplier); overflow {
		return nil, fmt.Errorf("%w: denominator", ErrOverflow)
	}

	amountIn := new(uint256.Int).Div(&c.numerator, &c.denominator)
	if !c.remainder.Mod(&c.numerator, &c.denominator).IsZero() {
		amountIn.Add(amountIn, one)
	}
	return amountIn, nil
}

// MulDiv returns floor(x*y/d), failing when x*y overflows. A zero divisor yields zero.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s", ErrOverflow, x.Dec(), y.Dec())
	}
	return product.Div(product, d), nil
}

// Mul returns x*y, failing on overflow.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s", ErrOverflow, x.Dec(), y.Dec())
	}
	return product, nil
}

// Sqrt returns floor(sqrt(x)).
func Sqrt(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(x)
}
