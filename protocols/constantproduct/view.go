package constantproduct

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolView is the serializable state of a pool as published on the state stream.
type PoolView struct {
	ID                   uint64         `json:"id"`
	Address              common.Address `json:"address"`
	TokenA               common.Address `json:"tokenA"`
	TokenB               common.Address `json:"tokenB"`
	SwapFeeBps           uint64         `json:"swapFeeBps"` // i.e 30 for 0.3%
	TwapEnabled          bool           `json:"twapEnabled"`
	ReserveA             *big.Int       `json:"reserveA"`
	ReserveB             *big.Int       `json:"reserveB"`
	TotalSupply          *big.Int       `json:"totalSupply"`
	KLast                *big.Int       `json:"kLast"`
	PriceACumulativeLast *big.Int       `json:"priceACumulativeLast,omitempty"`
	PriceBCumulativeLast *big.Int       `json:"priceBCumulativeLast,omitempty"`
	BlockTimestampLast   uint32         `json:"blockTimestampLast,omitempty"`
}
