// Package ledger holds token balances on behalf of accounts and pools.
//
// Pools never receive tokens through a call; a depositor moves tokens to the
// pool's address first and the pool infers the amount from its balance. The
// ledger is therefore the single source of truth for what a pool actually holds.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the sender's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnknownSnapshot is returned when reverting to a snapshot that does not exist.
	ErrUnknownSnapshot = errors.New("unknown snapshot")
	// ErrBalanceOverflow is returned when a credit would overflow 256 bits.
	ErrBalanceOverflow = errors.New("balance overflow")
)

// Ledger is the token custody interface consumed by pools.
type Ledger interface {
	BalanceOf(token, owner common.Address) *uint256.Int
	Transfer(token, from, to common.Address, amount *uint256.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
	DiscardSnapshot(id int)
}

type balanceKey struct {
	token common.Address
	owner common.Address
}

// journalEntry records the balance a key held before a change.
type journalEntry struct {
	key  balanceKey
	prev *uint256.Int
}

type revision struct {
	id           int
	journalIndex int
}

// Memory is a journaled in-memory Ledger. Snapshots are cheap markers into the
// journal; reverting replays the journal backwards.
type Memory struct {
	mu            sync.RWMutex
	balances      map[balanceKey]*uint256.Int
	journal       []journalEntry
	validRevision []revision
	nextRevision  int
}

// NewMemory creates an empty ledger.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[balanceKey]*uint256.Int),
	}
}

// BalanceOf returns a copy of owner's balance of token.
func (m *Memory) BalanceOf(token, owner common.Address) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if b, ok := m.balances[balanceKey{token, owner}]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

// Credit mints amount of token to owner. It is used for genesis funding.
func (m *Memory) Credit(token, owner common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := balanceKey{token, owner}
	next, overflow := new(uint256.Int).AddOverflow(m.balanceLocked(key), amount)
	if overflow {
		return fmt.Errorf("%w: credit %s to %s", ErrBalanceOverflow, amount.Dec(), owner.Hex())
	}
	m.setLocked(key, next)
	return nil
}

// Transfer moves amount of token from one owner to another.
func (m *Memory) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount.IsZero() || from == to {
		return nil
	}

	fromKey := balanceKey{token, from}
	fromBalance := m.balanceLocked(fromKey)
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBalance.Dec(), token.Hex(), amount.Dec())
	}

	toKey := balanceKey{token, to}
	toBalance, overflow := new(uint256.Int).AddOverflow(m.balanceLocked(toKey), amount)
	if overflow {
		return fmt.Errorf("%w: transfer to %s", ErrBalanceOverflow, to.Hex())
	}

	m.setLocked(fromKey, new(uint256.Int).Sub(fromBalance, amount))
	m.setLocked(toKey, toBalance)
	return nil
}

// Snapshot returns an identifier for the current balance set.
func (m *Memory) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextRevision
	m.nextRevision++
	m.validRevision = append(m.validRevision, revision{id: id, journalIndex: len(m.journal)})
	return id
}

// RevertToSnapshot restores the balances recorded when snapshot id was taken.
// Snapshots taken after id are invalidated. Reverting to an unknown id panics,
// matching a programming error rather than a runtime condition.
func (m *Memory) RevertToSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i := len(m.validRevision) - 1; i >= 0; i-- {
		if m.validRevision[i].id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic(fmt.Errorf("%w: %d", ErrUnknownSnapshot, id))
	}

	journalIndex := m.validRevision[idx].journalIndex
	for i := len(m.journal) - 1; i >= journalIndex; i-- {
		entry := m.journal[i]
		if entry.prev == nil {
			delete(m.balances, entry.key)
		} else {
			m.balances[entry.key] = entry.prev
		}
	}
	m.journal = m.journal[:journalIndex]
	m.validRevision = m.validRevision[:idx]
}

// DiscardSnapshot drops snapshot id and every snapshot taken after it, keeping
// the current balances. Once no snapshot remains the journal is released.
func (m *Memory) DiscardSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.validRevision) - 1; i >= 0; i-- {
		if m.validRevision[i].id == id {
			m.validRevision = m.validRevision[:i]
			break
		}
	}
	if len(m.validRevision) == 0 {
		m.journal = m.journal[:0]
	}
}

func (m *Memory) balanceLocked(key balanceKey) *uint256.Int {
	if b, ok := m.balances[key]; ok {
		return b
	}
	return new(uint256.Int)
}

func (m *Memory) setLocked(key balanceKey, value *uint256.Int) {
	if len(m.validRevision) > 0 {
		m.journal = append(m.journal, journalEntry{key: key, prev: m.balances[key]})
	}
	m.balances[key] = value
}
