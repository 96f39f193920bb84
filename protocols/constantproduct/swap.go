package constantproduct

import (
	"context"
	"fmt"

	"github.com/defistate/cpamm-go/protocols/constantproduct/calculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Callee receives control during a flash swap, after the output has been paid and
// before repayment is checked.
type Callee interface {
	SwapCallback(ctx context.Context, data []byte) error
}

// CalleeFunc adapts a function to the Callee interface.
type CalleeFunc func(ctx context.Context, data []byte) error

func (f CalleeFunc) SwapCallback(ctx context.Context, data []byte) error {
	return f(ctx, data)
}

// GetAmountOut quotes the output for selling amountIn of tokenIn at current reserves.
func (p *Pool) GetAmountOut(tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	reserveIn, reserveOut, _, err := p.sides(tokenIn)
	if err != nil {
		return nil, err
	}
	return calculator.GetAmountOut(amountIn, reserveIn, reserveOut, p.swapFee)
}

// GetAmountIn quotes the input needed to buy amountOut of tokenOut at current reserves.
func (p *Pool) GetAmountIn(tokenOut common.Address, amountOut *uint256.Int) (*uint256.Int, error) {
	var reserveIn, reserveOut *uint256.Int
	switch tokenOut {
	case p.tokenA:
		reserveIn, reserveOut = &p.state.reserveB, &p.state.reserveA
	case p.tokenB:
		reserveIn, reserveOut = &p.state.reserveA, &p.state.reserveB
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidOutputToken, tokenOut.Hex())
	}
	return calculator.GetAmountIn(amountOut, reserveIn, reserveOut, p.swapFee)
}

// Swap sells the tokenIn transferred to the pool since the last sync and pays the
// output to recipient.
func (p *Pool) Swap(tokenIn, recipient common.Address) (*uint256.Int, error) {
	var amountOut *uint256.Int
	err := p.atomic("swap", func() error {
		if err := p.initialized(); err != nil {
			return err
		}
		reserveIn, reserveOut, tokenOut, err := p.sides(tokenIn)
		if err != nil {
			return err
		}
		amountIn, err := deposited(p.ledger.BalanceOf(tokenIn, p.address), reserveIn)
		if err != nil {
			return err
		}
		if amountIn.IsZero() {
			return fmt.Errorf("%w: no %s deposited", ErrInvalidAmounts, tokenIn.Hex())
		}

		if amountOut, err = calculator.GetAmountOut(amountIn, reserveIn, reserveOut, p.swapFee); err != nil {
			return err
		}
		if err := p.ledger.Transfer(tokenOut, p.address, recipient, amountOut); err != nil {
			return err
		}
		return p.settle(p.product())
	})
	if err != nil {
		return nil, err
	}
	return amountOut, nil
}

// FlashSwap pays the output for amountIn of tokenIn to recipient up front, then
// calls callee. The call fails and is fully reverted unless the pool holds at least
// amountIn of new tokenIn once the callback returns.
func (p *Pool) FlashSwap(ctx context.Context, callee Callee, tokenIn, recipient common.Address, amountIn *uint256.Int, data []byte) (*uint256.Int, error) {
	var amountOut *uint256.Int
	err := p.atomic("flashSwap", func() error {
		if err := p.initialized(); err != nil {
			return err
		}
		if callee == nil {
			return fmt.Errorf("%w: nil callee", ErrInvalidAmounts)
		}
		reserveIn, reserveOut, tokenOut, err := p.sides(tokenIn)
		if err != nil {
			return err
		}
		if amountOut, err = calculator.GetAmountOut(amountIn, reserveIn, reserveOut, p.swapFee); err != nil {
			return err
		}
		if err := p.ledger.Transfer(tokenOut, p.address, recipient, amountOut); err != nil {
			return err
		}

		if err := callee.SwapCallback(ctx, data); err != nil {
			return fmt.Errorf("swap callback: %w", err)
		}

		balanceIn := p.ledger.BalanceOf(tokenIn, p.address)
		if balanceIn.Lt(reserveIn) || new(uint256.Int).Sub(balanceIn, reserveIn).Lt(amountIn) {
			return fmt.Errorf("%w: repaid less than %s of %s", ErrInvariantViolated, amountIn.Dec(), tokenIn.Hex())
		}
		return p.settle(p.product())
	})
	if err != nil {
		return nil, err
	}
	return amountOut, nil
}

// settle syncs reserves after a trade and checks the product did not fall below kBefore.
func (p *Pool) settle(kBefore *uint256.Int) error {
	if err := p.sync(); err != nil {
		return err
	}
	if k := p.product(); k.Lt(kBefore) {
		return fmt.Errorf("%w: k fell from %s to %s", ErrInvariantViolated, kBefore.Dec(), k.Dec())
	}
	return nil
}

// sides returns the reserves and output token for a trade selling tokenIn.
// The returned reserves alias pool state.
func (p *Pool) sides(tokenIn common.Address) (reserveIn, reserveOut *uint256.Int, tokenOut common.Address, err error) {
	switch tokenIn {
	case p.tokenA:
		return &p.state.reserveA, &p.state.reserveB, p.tokenB, nil
	case p.tokenB:
		return &p.state.reserveB, &p.state.reserveA, p.tokenA, nil
	default:
		return nil, nil, common.Address{}, fmt.Errorf("%w: %s", ErrInvalidInputToken, tokenIn.Hex())
	}
}

func (p *Pool) initialized() error {
	if p.state.reserveA.IsZero() || p.state.reserveB.IsZero() {
		return ErrPoolUninitialized
	}
	return nil
}
