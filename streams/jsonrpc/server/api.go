package server

import (
	"context"
	"errors"

	"github.com/defistate/cpamm-go/deployer"
	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

// Reserves is the result of pool_getNativeReserves.
type Reserves struct {
	ReserveA           *hexutil.Big   `json:"reserveA"`
	ReserveB           *hexutil.Big   `json:"reserveB"`
	BlockTimestampLast hexutil.Uint64 `json:"blockTimestampLast"`
}

// BurnResult is the result of pool_burn.
type BurnResult struct {
	AmountA *hexutil.Big `json:"amountA"`
	AmountB *hexutil.Big `json:"amountB"`
}

// PoolAPI is served under the "pool" namespace. Every method takes the pool address first.
type PoolAPI struct {
	s *Service
}

// pool runs fn against the pool at address, reading only.
func (api *PoolAPI) pool(address common.Address, fn func(p *constantproduct.Pool) error) error {
	return api.s.read(func() error {
		p, err := api.s.registry.Pool(address)
		if err != nil {
			return err
		}
		return reverted(fn(p))
	})
}

// mutate runs fn against the pool at address and publishes the result.
func (api *PoolAPI) mutate(address common.Address, fn func(p *constantproduct.Pool) error) error {
	return api.s.write(func() error {
		p, err := api.s.registry.Pool(address)
		if err != nil {
			return err
		}
		return reverted(fn(p))
	})
}

// Pools returns a view of every registered pool.
func (api *PoolAPI) Pools() []constantproduct.PoolView {
	return api.s.Pools()
}

// GetAssets returns the pool's sorted token pair.
func (api *PoolAPI) GetAssets(address common.Address) ([2]common.Address, error) {
	var assets [2]common.Address
	err := api.pool(address, func(p *constantproduct.Pool) error {
		assets = p.GetAssets()
		return nil
	})
	return assets, err
}

// GetNativeReserves returns the reserves and the timestamp of their last update.
func (api *PoolAPI) GetNativeReserves(address common.Address) (*Reserves, error) {
	var res *Reserves
	err := api.pool(address, func(p *constantproduct.Pool) error {
		reserveA, reserveB := p.GetNativeReserves()
		res = &Reserves{
			ReserveA:           toBig(reserveA),
			ReserveB:           toBig(reserveB),
			BlockTimestampLast: hexutil.Uint64(p.BlockTimestampLast()),
		}
		return nil
	})
	return res, err
}

// PoolIdentifier names the pool type and fee tier.
func (api *PoolAPI) PoolIdentifier(address common.Address) (string, error) {
	var id string
	err := api.pool(address, func(p *constantproduct.Pool) error {
		id = p.PoolIdentifier()
		return nil
	})
	return id, err
}

// TotalSupply returns the outstanding liquidity shares.
func (api *PoolAPI) TotalSupply(address common.Address) (*hexutil.Big, error) {
	var supply *hexutil.Big
	err := api.pool(address, func(p *constantproduct.Pool) error {
		supply = toBig(p.TotalSupply())
		return nil
	})
	return supply, err
}

// BalanceOf returns the liquidity shares owner holds in the pool.
func (api *PoolAPI) BalanceOf(address, owner common.Address) (*hexutil.Big, error) {
	var balance *hexutil.Big
	err := api.pool(address, func(p *constantproduct.Pool) error {
		balance = toBig(p.BalanceOf(owner))
		return nil
	})
	return balance, err
}

// GetAmountOut quotes the output of swapping amountIn of tokenIn.
func (api *PoolAPI) GetAmountOut(address, tokenIn common.Address, amountIn *hexutil.Big) (*hexutil.Big, error) {
	in, err := toUint256(amountIn)
	if err != nil {
		return nil, err
	}
	out, err := api.s.GetAmountOut(address, tokenIn, in)
	if err != nil {
		return nil, quoteError(err)
	}
	return toBig(out), nil
}

// GetAmountIn quotes the tokenIn needed to receive amountOut of tokenOut.
func (api *PoolAPI) GetAmountIn(address, tokenOut common.Address, amountOut *hexutil.Big) (*hexutil.Big, error) {
	out, err := toUint256(amountOut)
	if err != nil {
		return nil, err
	}
	in, err := api.s.GetAmountIn(address, tokenOut, out)
	if err != nil {
		return nil, quoteError(err)
	}
	return toBig(in), nil
}

// quoteError marks quote failures as reverts; unknown pools keep the default code.
func quoteError(err error) error {
	if errors.Is(err, deployer.ErrPoolNotFound) {
		return err
	}
	return reverted(err)
}

// Mint mints shares to recipient for the tokens already transferred to the pool.
func (api *PoolAPI) Mint(address, recipient common.Address) (*hexutil.Big, error) {
	var liquidity *hexutil.Big
	err := api.mutate(address, func(p *constantproduct.Pool) error {
		minted, err := p.Mint(recipient)
		if err != nil {
			return err
		}
		liquidity = toBig(minted)
		return nil
	})
	return liquidity, err
}

// Burn redeems the shares already transferred to the pool for both tokens.
func (api *PoolAPI) Burn(address, recipient common.Address) (*BurnResult, error) {
	var res *BurnResult
	err := api.mutate(address, func(p *constantproduct.Pool) error {
		amountA, amountB, err := p.Burn(recipient)
		if err != nil {
			return err
		}
		res = &BurnResult{AmountA: toBig(amountA), AmountB: toBig(amountB)}
		return nil
	})
	return res, err
}

// BurnSingle redeems the shares already transferred to the pool for tokenOut only.
func (api *PoolAPI) BurnSingle(address, tokenOut, recipient common.Address) (*hexutil.Big, error) {
	var out *hexutil.Big
	err := api.mutate(address, func(p *constantproduct.Pool) error {
		amount, err := p.BurnSingle(tokenOut, recipient)
		if err != nil {
			return err
		}
		out = toBig(amount)
		return nil
	})
	return out, err
}

// Swap trades the tokenIn already transferred to the pool.
func (api *PoolAPI) Swap(address, tokenIn, recipient common.Address) (*hexutil.Big, error) {
	var out *hexutil.Big
	err := api.mutate(address, func(p *constantproduct.Pool) error {
		amount, err := p.Swap(tokenIn, recipient)
		if err != nil {
			return err
		}
		out = toBig(amount)
		return nil
	})
	return out, err
}

// TransferShares moves liquidity shares between holders.
func (api *PoolAPI) TransferShares(address, from, to common.Address, amount *hexutil.Big) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	return api.mutate(address, func(p *constantproduct.Pool) error {
		return p.TransferShares(from, to, value)
	})
}

// SubscribeStateStream streams the full state once, then one diff per committed mutation.
func (api *PoolAPI) SubscribeStateStream(ctx context.Context) (*rpc.Subscription, error) {
	return api.s.subscribe(ctx)
}

// LedgerAPI is served under the "ledger" namespace.
type LedgerAPI struct {
	s *Service
}

func (api *LedgerAPI) BalanceOf(token, owner common.Address) *hexutil.Big {
	var balance *uint256.Int
	_ = api.s.read(func() error {
		balance = api.s.ledger.BalanceOf(token, owner)
		return nil
	})
	return toBig(balance)
}

// Transfer moves tokens between accounts. Depositing into a pool is a transfer to its address.
func (api *LedgerAPI) Transfer(token, from, to common.Address, amount *hexutil.Big) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	return api.s.read(func() error {
		return reverted(api.s.ledger.Transfer(token, from, to, value))
	})
}

// DeployerAPI is served under the "deployer" namespace. Fee changes run under the
// service lock and are published like any other mutation.
type DeployerAPI struct {
	s *Service
}

// SetBarFee sets the protocol fee, in units of MaxFee, on every pool.
func (api *DeployerAPI) SetBarFee(caller common.Address, barFee hexutil.Uint64) error {
	return api.s.write(func() error {
		return reverted(api.s.fees.SetBarFee(caller, uint64(barFee)))
	})
}

// SetBarFeeTo sets the protocol fee recipient on every pool.
func (api *DeployerAPI) SetBarFeeTo(caller, barFeeTo common.Address) error {
	return api.s.write(func() error {
		return reverted(api.s.fees.SetBarFeeTo(caller, barFeeTo))
	})
}
