package indexer

import (
	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/ethereum/go-ethereum/common"
)

// Indexer builds IndexedConstantProduct views from streamed pool lists.
type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed pool system from a raw slice of pool views.
func (i *Indexer) Index(pools []constantproduct.PoolView) IndexedConstantProduct {
	return NewIndexableConstantProductSystem(pools)
}

// IndexableConstantProductSystem provides fast, indexed access to pool views.
type IndexableConstantProductSystem struct {
	byID      map[uint64]int
	byAddress map[common.Address]int
	byToken   map[common.Address][]int
	all       []constantproduct.PoolView
}

// NewIndexableConstantProductSystem indexes pools by id, address and token.
func NewIndexableConstantProductSystem(pools []constantproduct.PoolView) *IndexableConstantProductSystem {
	s := &IndexableConstantProductSystem{
		byID:      make(map[uint64]int, len(pools)),
		byAddress: make(map[common.Address]int, len(pools)),
		byToken:   make(map[common.Address][]int),
		all:       pools,
	}
	for i, p := range pools {
		s.byID[p.ID] = i
		s.byAddress[p.Address] = i
		s.byToken[p.TokenA] = append(s.byToken[p.TokenA], i)
		s.byToken[p.TokenB] = append(s.byToken[p.TokenB], i)
	}
	return s
}

// GetByID retrieves a pool by its registry ID.
func (s *IndexableConstantProductSystem) GetByID(id uint64) (constantproduct.PoolView, bool) {
	i, ok := s.byID[id]
	if !ok {
		return constantproduct.PoolView{}, false
	}
	return s.all[i], true
}

// GetByAddress retrieves a pool by its address.
func (s *IndexableConstantProductSystem) GetByAddress(address common.Address) (constantproduct.PoolView, bool) {
	i, ok := s.byAddress[address]
	if !ok {
		return constantproduct.PoolView{}, false
	}
	return s.all[i], true
}

// GetByToken returns every pool that trades token, in index order.
func (s *IndexableConstantProductSystem) GetByToken(token common.Address) []constantproduct.PoolView {
	indexes := s.byToken[token]
	pools := make([]constantproduct.PoolView, len(indexes))
	for j, i := range indexes {
		pools[j] = s.all[i]
	}
	return pools
}

// All returns a defensive copy of the slice of all pools.
func (s *IndexableConstantProductSystem) All() []constantproduct.PoolView {
	allCopy := make([]constantproduct.PoolView, len(s.all))
	copy(allCopy, s.all)
	return allCopy
}
