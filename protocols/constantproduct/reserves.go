package constantproduct

import (
	"fmt"

	"github.com/holiman/uint256"
)

// update records new reserves and, when TWAP is enabled, folds the time elapsed
// since the previous sync into the UQ112x112 price accumulators. Accumulators
// and timestamps wrap.
func (p *Pool) update(balanceA, balanceB *uint256.Int) error {
	if balanceA.Gt(maxReserve) || balanceB.Gt(maxReserve) {
		return fmt.Errorf("%w: reserves (%s, %s) exceed 2^112-1", ErrOverflow, balanceA.Dec(), balanceB.Dec())
	}

	if p.twapEnabled {
		now := uint32(p.now().Unix())
		elapsed := now - p.state.blockTimestampLast
		if elapsed != 0 && !p.state.reserveA.IsZero() && !p.state.reserveB.IsZero() {
			var price, delta uint256.Int
			dt := uint256.NewInt(uint64(elapsed))

			price.Lsh(&p.state.reserveB, 112).Div(&price, &p.state.reserveA)
			p.state.priceACumulative.Add(&p.state.priceACumulative, delta.Mul(&price, dt))

			price.Lsh(&p.state.reserveA, 112).Div(&price, &p.state.reserveB)
			p.state.priceBCumulative.Add(&p.state.priceBCumulative, delta.Mul(&price, dt))
		}
		p.state.blockTimestampLast = now
	}

	p.state.reserveA.Set(balanceA)
	p.state.reserveB.Set(balanceB)
	return nil
}

// product returns reserveA*reserveB. Reserves are bounded by 2^112 so it cannot overflow.
func (p *Pool) product() *uint256.Int {
	return new(uint256.Int).Mul(&p.state.reserveA, &p.state.reserveB)
}

// sync reads the pool balances and records them as reserves.
func (p *Pool) sync() error {
	balanceA, balanceB := p.balances()
	return p.update(balanceA, balanceB)
}
