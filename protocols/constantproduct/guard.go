package constantproduct

import (
	"fmt"
)

// atomic runs fn as a single all-or-nothing operation. A nested call on the same
// pool fails with ErrReentrancyDetected. If fn returns an error or panics, the pool
// state and every ledger transfer made since entry are rolled back.
func (p *Pool) atomic(op string, fn func() error) error {
	if !p.locked.CompareAndSwap(false, true) {
		p.metrics.observe(p.address, op, ErrReentrancyDetected)
		return fmt.Errorf("%w: %s", ErrReentrancyDetected, op)
	}
	defer p.locked.Store(false)

	saved := p.state.clone()
	snapshot := p.ledger.Snapshot()
	committed := false
	defer func() {
		if committed {
			return
		}
		p.state = saved
		p.ledger.RevertToSnapshot(snapshot)
	}()

	if err := fn(); err != nil {
		p.logger.Debug("pool operation reverted", "pool", p.address, "op", op, "error", err)
		p.metrics.observe(p.address, op, err)
		return err
	}

	committed = true
	p.ledger.DiscardSnapshot(snapshot)
	p.logger.Debug("pool operation applied", "pool", p.address, "op", op,
		"reserveA", p.state.reserveA.Dec(), "reserveB", p.state.reserveB.Dec(), "totalSupply", p.state.totalSupply.Dec())
	p.metrics.observe(p.address, op, nil)
	p.metrics.record(p)
	return nil
}
