package constantproduct

import (
	"errors"

	"github.com/defistate/cpamm-go/protocols/constantproduct/calculator"
)

var (
	// ErrZeroAddress is returned when the first deploy token is the zero address.
	ErrZeroAddress = errors.New("zero address")
	// ErrIdenticalAddresses is returned when both deploy tokens are the same.
	ErrIdenticalAddresses = errors.New("identical addresses")
	// ErrInvalidSwapFee is returned when the swap fee exceeds MaxFee.
	ErrInvalidSwapFee = errors.New("invalid swap fee")
	// ErrInvalidAmounts is returned when a deposit or trade carries no usable amount.
	ErrInvalidAmounts = errors.New("invalid amounts")
	// ErrInsufficientLiquidityMinted is returned when a deposit would mint zero shares.
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	// ErrInsufficientLiquidityBurned is returned when a redemption would pay out zero of a token.
	ErrInsufficientLiquidityBurned = errors.New("insufficient liquidity burned")
	// ErrInvalidInputToken is returned when the input token is not one of the pool's assets.
	ErrInvalidInputToken = errors.New("invalid input token")
	// ErrInvalidOutputToken is returned when the output token is not one of the pool's assets.
	ErrInvalidOutputToken = errors.New("invalid output token")
	// ErrInsufficientLiquidity is returned when a requested output cannot be bought.
	ErrInsufficientLiquidity = calculator.ErrInsufficientLiquidity
	// ErrPoolUninitialized is returned when trading against a pool without reserves.
	ErrPoolUninitialized = errors.New("pool uninitialized")
	// ErrUnauthorized is returned when a privileged call does not come from the deployer.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrReentrancyDetected is returned when a mutating call enters a pool that is already mid-operation.
	ErrReentrancyDetected = errors.New("reentrancy detected")
	// ErrInvariantViolated is returned when a trade would leave the reserve product lower than before.
	ErrInvariantViolated = errors.New("invariant violated")
	// ErrOverflow is returned when a value exceeds its bound (256-bit math or 112-bit reserves).
	ErrOverflow = calculator.ErrOverflow
	// ErrInsufficientBalance is returned when a share transfer exceeds the sender's balance.
	ErrInsufficientBalance = errors.New("insufficient share balance")
	// ErrInvalidPayload is returned when an encoded payload cannot be decoded.
	ErrInvalidPayload = errors.New("invalid payload")
)
