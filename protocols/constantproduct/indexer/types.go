package indexer

import (
	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/ethereum/go-ethereum/common"
)

// IndexedConstantProduct defines the methods for accessing indexed pool views.
type IndexedConstantProduct interface {
	GetByID(id uint64) (constantproduct.PoolView, bool)
	GetByAddress(address common.Address) (constantproduct.PoolView, bool)
	GetByToken(token common.Address) []constantproduct.PoolView
	All() []constantproduct.PoolView
}
