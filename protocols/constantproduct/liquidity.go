package constantproduct

import (
	"fmt"

	"github.com/defistate/cpamm-go/protocols/constantproduct/calculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Mint credits recipient with shares for the tokens transferred to the pool since
// the last sync. The first mint locks MinimumLiquidity shares at the zero address.
func (p *Pool) Mint(recipient common.Address) (*uint256.Int, error) {
	var liquidity *uint256.Int
	err := p.atomic("mint", func() error {
		balanceA, balanceB := p.balances()
		amountA, err := deposited(balanceA, &p.state.reserveA)
		if err != nil {
			return err
		}
		amountB, err := deposited(balanceB, &p.state.reserveB)
		if err != nil {
			return err
		}
		if amountA.IsZero() && amountB.IsZero() {
			return fmt.Errorf("%w: nothing deposited", ErrInvalidAmounts)
		}

		totalSupply, err := p.mintFee()
		if err != nil {
			return err
		}

		if totalSupply.IsZero() {
			if amountA.IsZero() || amountB.IsZero() {
				return fmt.Errorf("%w: first deposit needs both tokens", ErrInvalidAmounts)
			}
			k, err := calculator.Mul(amountA, amountB)
			if err != nil {
				return err
			}
			root := calculator.Sqrt(k)
			if !root.Gt(minimumLiquidity) {
				return fmt.Errorf("%w: sqrt(k) %s <= %d", ErrInsufficientLiquidityMinted, root.Dec(), MinimumLiquidity)
			}
			liquidity = root.Sub(root, minimumLiquidity)
			if err := p.mintShares(common.Address{}, minimumLiquidity); err != nil {
				return err
			}
		} else {
			sharesA, err := calculator.MulDiv(amountA, totalSupply, &p.state.reserveA)
			if err != nil {
				return err
			}
			sharesB, err := calculator.MulDiv(amountB, totalSupply, &p.state.reserveB)
			if err != nil {
				return err
			}
			liquidity = sharesA
			if sharesB.Lt(sharesA) {
				liquidity = sharesB
			}
			if liquidity.IsZero() {
				return fmt.Errorf("%w: deposit (%s, %s) is worth zero shares", ErrInsufficientLiquidityMinted, amountA.Dec(), amountB.Dec())
			}
		}

		if err := p.mintShares(recipient, liquidity); err != nil {
			return err
		}
		if err := p.update(balanceA, balanceB); err != nil {
			return err
		}
		p.state.kLast = *p.product()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return liquidity, nil
}

// Burn redeems the shares held by the pool's own address for both tokens.
func (p *Pool) Burn(recipient common.Address) (amountA, amountB *uint256.Int, err error) {
	err = p.atomic("burn", func() error {
		var err error
		amountA, amountB, err = p.redeem()
		if err != nil {
			return err
		}
		if err := p.ledger.Transfer(p.tokenA, p.address, recipient, amountA); err != nil {
			return err
		}
		if err := p.ledger.Transfer(p.tokenB, p.address, recipient, amountB); err != nil {
			return err
		}
		if err := p.sync(); err != nil {
			return err
		}
		p.state.kLast = *p.product()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amountA, amountB, nil
}

// BurnSingle redeems the shares held by the pool's own address and swaps the other
// side into tokenOut, paying everything out in tokenOut.
func (p *Pool) BurnSingle(tokenOut, recipient common.Address) (*uint256.Int, error) {
	var amountOut *uint256.Int
	err := p.atomic("burnSingle", func() error {
		if tokenOut != p.tokenA && tokenOut != p.tokenB {
			return fmt.Errorf("%w: %s", ErrInvalidOutputToken, tokenOut.Hex())
		}
		amountA, amountB, err := p.redeem()
		if err != nil {
			return err
		}

		remainingA := new(uint256.Int).Sub(&p.state.reserveA, amountA)
		remainingB := new(uint256.Int).Sub(&p.state.reserveB, amountB)
		if tokenOut == p.tokenB {
			swapped, err := calculator.GetAmountOut(amountA, remainingA, remainingB, p.swapFee)
			if err != nil {
				return err
			}
			amountOut = amountB.Add(amountB, swapped)
		} else {
			swapped, err := calculator.GetAmountOut(amountB, remainingB, remainingA, p.swapFee)
			if err != nil {
				return err
			}
			amountOut = amountA.Add(amountA, swapped)
		}

		if err := p.ledger.Transfer(tokenOut, p.address, recipient, amountOut); err != nil {
			return err
		}
		if err := p.sync(); err != nil {
			return err
		}
		p.state.kLast = *p.product()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amountOut, nil
}

// redeem burns the pool's own share balance and returns its proportional claim on
// the reserves.
func (p *Pool) redeem() (amountA, amountB *uint256.Int, err error) {
	liquidity := p.BalanceOf(p.address)
	totalSupply, err := p.mintFee()
	if err != nil {
		return nil, nil, err
	}
	if totalSupply.IsZero() {
		return nil, nil, fmt.Errorf("%w: no shares outstanding", ErrInsufficientLiquidityBurned)
	}

	if amountA, err = calculator.MulDiv(liquidity, &p.state.reserveA, totalSupply); err != nil {
		return nil, nil, err
	}
	if amountB, err = calculator.MulDiv(liquidity, &p.state.reserveB, totalSupply); err != nil {
		return nil, nil, err
	}
	if amountA.IsZero() || amountB.IsZero() {
		return nil, nil, fmt.Errorf("%w: %s shares redeem (%s, %s)", ErrInsufficientLiquidityBurned, liquidity.Dec(), amountA.Dec(), amountB.Dec())
	}
	if err := p.burnShares(p.address, liquidity); err != nil {
		return nil, nil, err
	}
	return amountA, amountB, nil
}

// mintFee credits the protocol's cut of the fee growth since kLast to barFeeTo and
// returns the resulting total supply.
func (p *Pool) mintFee() (*uint256.Int, error) {
	totalSupply := p.state.totalSupply.Clone()
	if p.state.barFee == 0 || p.state.barFeeTo == (common.Address{}) || p.state.kLast.IsZero() {
		return totalSupply, nil
	}

	rootK := calculator.Sqrt(p.product())
	rootKLast := calculator.Sqrt(&p.state.kLast)
	if !rootK.Gt(rootKLast) {
		return totalSupply, nil
	}

	barFee := uint256.NewInt(p.state.barFee)
	growth := new(uint256.Int).Sub(rootK, rootKLast)
	numerator, err := calculator.Mul(totalSupply, growth)
	if err != nil {
		return nil, err
	}
	if numerator, err = calculator.Mul(numerator, barFee); err != nil {
		return nil, err
	}
	// rootK and rootKLast are below 2^112, so the denominator fits.
	denominator := new(uint256.Int).Mul(uint256.NewInt(MaxFee-p.state.barFee), rootK)
	denominator.Add(denominator, new(uint256.Int).Mul(barFee, rootKLast))

	liquidity := numerator.Div(numerator, denominator)
	if liquidity.IsZero() {
		return totalSupply, nil
	}
	if err := p.mintShares(p.state.barFeeTo, liquidity); err != nil {
		return nil, err
	}
	p.logger.Debug("protocol fee minted", "pool", p.address, "to", p.state.barFeeTo, "shares", liquidity.Dec())
	return totalSupply.Add(totalSupply, liquidity), nil
}

// TransferShares moves liquidity shares between holders. Transferring shares to the
// pool's own address is how they are queued for Burn. Shares locked at the zero
// address on the first mint can never be moved.
func (p *Pool) TransferShares(from, to common.Address, amount *uint256.Int) error {
	return p.atomic("transferShares", func() error {
		if amount == nil {
			return fmt.Errorf("%w: nil amount", ErrInvalidAmounts)
		}
		if from == (common.Address{}) {
			return fmt.Errorf("%w: shares held by the zero address are locked", ErrUnauthorized)
		}
		if err := p.burnShares(from, amount); err != nil {
			return err
		}
		return p.mintShares(to, amount)
	})
}

// UpdateBarFee reloads the protocol fee settings from the deployer. Only the
// deployer may call it.
func (p *Pool) UpdateBarFee(caller common.Address) error {
	return p.atomic("updateBarFee", func() error {
		if caller != p.deployer.Address() {
			return fmt.Errorf("%w: %s is not the deployer", ErrUnauthorized, caller.Hex())
		}
		p.state.barFee = p.deployer.BarFee()
		p.state.barFeeTo = p.deployer.BarFeeTo()
		return nil
	})
}

// deposited returns balance - reserve. A balance below the reserve means tokens left
// the pool outside of an operation.
func deposited(balance, reserve *uint256.Int) (*uint256.Int, error) {
	if balance.Lt(reserve) {
		return nil, fmt.Errorf("%w: balance %s below reserve %s", ErrInvalidAmounts, balance.Dec(), reserve.Dec())
	}
	return new(uint256.Int).Sub(balance, reserve), nil
}
