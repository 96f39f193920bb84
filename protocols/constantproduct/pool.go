package constantproduct

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/defistate/cpamm-go/protocols/constantproduct/calculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// MaxFee is 100% in basis points.
	MaxFee = calculator.MaxFee
	// MinimumLiquidity is the share amount locked to the zero address on the first mint.
	MinimumLiquidity = 1000
)

var (
	minimumLiquidity = uint256.NewInt(MinimumLiquidity)
	// maxReserve is 2^112 - 1.
	maxReserve = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 112), uint256.NewInt(1))
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Ledger holds the token balances the pool trades against.
// Snapshot and RevertToSnapshot must nest.
type Ledger interface {
	BalanceOf(token, owner common.Address) *uint256.Int
	Transfer(token, from, to common.Address, amount *uint256.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
	DiscardSnapshot(id int)
}

// Deployer is the account that created the pool and owns its protocol fee settings.
type Deployer interface {
	Address() common.Address
	BarFee() uint64
	BarFeeTo() common.Address
}

// Config holds the immutable parameters of a pool.
type Config struct {
	// ID is the registry id the deployer assigned; it keys the pool in state diffs.
	ID          uint64
	Address     common.Address
	TokenA      common.Address
	TokenB      common.Address
	SwapFeeBps  uint64
	TwapEnabled bool
}

func (c *Config) validate() error {
	if c.TokenA == (common.Address{}) {
		return ErrZeroAddress
	}
	if c.TokenA == c.TokenB {
		return fmt.Errorf("%w: %s", ErrIdenticalAddresses, c.TokenA.Hex())
	}
	if c.SwapFeeBps > MaxFee {
		return fmt.Errorf("%w: %d", ErrInvalidSwapFee, c.SwapFeeBps)
	}
	return nil
}

// Option configures a Pool.
type Option interface {
	apply(*Pool)
}

type funcOption func(*Pool)

func (f funcOption) apply(p *Pool) {
	f(p)
}

func newOption(f func(*Pool)) Option {
	return funcOption(f)
}

// WithLogger sets the pool logger. Pools log nothing by default.
func WithLogger(logger Logger) Option {
	return newOption(func(p *Pool) {
		p.logger = logger
	})
}

// WithMetrics records pool operations and reserves in m.
func WithMetrics(m *Metrics) Option {
	return newOption(func(p *Pool) {
		p.metrics = m
	})
}

// WithClock sets the time source of the TWAP accumulators.
func WithClock(now func() time.Time) Option {
	return newOption(func(p *Pool) {
		p.now = now
	})
}

// state is everything an operation may change. It is copied by value on entry to
// each mutating call and restored on failure.
type state struct {
	reserveA           uint256.Int
	reserveB           uint256.Int
	totalSupply        uint256.Int
	kLast              uint256.Int
	barFee             uint64
	barFeeTo           common.Address
	blockTimestampLast uint32
	priceACumulative   uint256.Int
	priceBCumulative   uint256.Int
	// share values are never mutated in place, so a shallow map copy is a full copy.
	shares map[common.Address]*uint256.Int
}

func (s *state) clone() state {
	c := *s
	c.shares = maps.Clone(s.shares)
	return c
}

// Pool is a two-token constant-product pool.
// A Pool is not safe for concurrent use; callers must serialize access.
type Pool struct {
	id          uint64
	address     common.Address
	tokenA      common.Address
	tokenB      common.Address
	swapFee     uint64
	twapEnabled bool

	ledger   Ledger
	deployer Deployer
	logger   Logger
	metrics  *Metrics
	now      func() time.Time

	locked atomic.Bool
	state  state
}

// New validates cfg and creates an empty pool.
// Only the first token is checked against the zero address; tokens are stored in
// ascending order afterwards.
func New(cfg Config, ledger Ledger, deployer Deployer, opts ...Option) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if deployer == nil {
		return nil, errors.New("deployer is required")
	}

	tokenA, tokenB := cfg.TokenA, cfg.TokenB
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		tokenA, tokenB = tokenB, tokenA
	}

	p := &Pool{
		id:          cfg.ID,
		address:     cfg.Address,
		tokenA:      tokenA,
		tokenB:      tokenB,
		swapFee:     cfg.SwapFeeBps,
		twapEnabled: cfg.TwapEnabled,
		ledger:      ledger,
		deployer:    deployer,
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
		state: state{
			barFee:   deployer.BarFee(),
			barFeeTo: deployer.BarFeeTo(),
			shares:   make(map[common.Address]*uint256.Int),
		},
	}
	if cfg.TwapEnabled {
		p.state.blockTimestampLast = 1
	}
	for _, opt := range opts {
		opt.apply(p)
	}
	return p, nil
}

// ID returns the registry id of the pool.
func (p *Pool) ID() uint64 {
	return p.id
}

// Address returns the account that holds the pool's tokens.
func (p *Pool) Address() common.Address {
	return p.address
}

// GetAssets returns the pool tokens in ascending order.
func (p *Pool) GetAssets() [2]common.Address {
	return [2]common.Address{p.tokenA, p.tokenB}
}

// GetNativeReserves returns copies of the recorded reserves.
func (p *Pool) GetNativeReserves() (reserveA, reserveB *uint256.Int) {
	return p.state.reserveA.Clone(), p.state.reserveB.Clone()
}

// BlockTimestampLast returns the 32-bit timestamp of the last reserve sync.
func (p *Pool) BlockTimestampLast() uint32 {
	return p.state.blockTimestampLast
}

// PoolIdentifier names the pool type and fee tier.
func (p *Pool) PoolIdentifier() string {
	return Identifier(p.swapFee)
}

// Identifier returns the pool identifier for a fee tier.
func Identifier(swapFeeBps uint64) string {
	return fmt.Sprintf("ConstantProduct:%dbps", swapFeeBps)
}

// SwapFee returns the swap fee in basis points.
func (p *Pool) SwapFee() uint64 {
	return p.swapFee
}

// TwapEnabled reports whether price accumulators are maintained.
func (p *Pool) TwapEnabled() bool {
	return p.twapEnabled
}

// TotalSupply returns the outstanding liquidity shares, including the locked minimum.
func (p *Pool) TotalSupply() *uint256.Int {
	return p.state.totalSupply.Clone()
}

// KLast returns reserveA*reserveB as of the last liquidity event.
func (p *Pool) KLast() *uint256.Int {
	return p.state.kLast.Clone()
}

// BarFee returns the protocol fee share and its recipient as last read from the deployer.
func (p *Pool) BarFee() (uint64, common.Address) {
	return p.state.barFee, p.state.barFeeTo
}

// BalanceOf returns the liquidity shares held by owner.
func (p *Pool) BalanceOf(owner common.Address) *uint256.Int {
	if shares, ok := p.state.shares[owner]; ok {
		return shares.Clone()
	}
	return new(uint256.Int)
}

// PriceCumulativeLast returns the UQ112x112 price accumulators for tokenA and tokenB.
func (p *Pool) PriceCumulativeLast() (priceA, priceB *uint256.Int) {
	return p.state.priceACumulative.Clone(), p.state.priceBCumulative.Clone()
}

// View returns a snapshot of the pool suitable for serialization.
func (p *Pool) View() PoolView {
	return PoolView{
		ID:                   p.id,
		Address:              p.address,
		TokenA:               p.tokenA,
		TokenB:               p.tokenB,
		SwapFeeBps:           p.swapFee,
		TwapEnabled:          p.twapEnabled,
		ReserveA:             p.state.reserveA.ToBig(),
		ReserveB:             p.state.reserveB.ToBig(),
		TotalSupply:          p.state.totalSupply.ToBig(),
		KLast:                p.state.kLast.ToBig(),
		PriceACumulativeLast: p.state.priceACumulative.ToBig(),
		PriceBCumulativeLast: p.state.priceBCumulative.ToBig(),
		BlockTimestampLast:   p.state.blockTimestampLast,
	}
}

// balances reads the pool's current token balances from the ledger.
func (p *Pool) balances() (balanceA, balanceB *uint256.Int) {
	return p.ledger.BalanceOf(p.tokenA, p.address), p.ledger.BalanceOf(p.tokenB, p.address)
}

func (p *Pool) mintShares(to common.Address, amount *uint256.Int) error {
	supply, overflow := new(uint256.Int).AddOverflow(&p.state.totalSupply, amount)
	if overflow {
		return fmt.Errorf("%w: total supply", ErrOverflow)
	}
	p.state.totalSupply = *supply
	p.setShares(to, new(uint256.Int).Add(p.BalanceOf(to), amount))
	return nil
}

func (p *Pool) burnShares(from common.Address, amount *uint256.Int) error {
	balance := p.BalanceOf(from)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, burning %s", ErrInsufficientBalance, from.Hex(), balance.Dec(), amount.Dec())
	}
	p.state.totalSupply.Sub(&p.state.totalSupply, amount)
	p.setShares(from, balance.Sub(balance, amount))
	return nil
}

func (p *Pool) setShares(owner common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		delete(p.state.shares, owner)
		return
	}
	p.state.shares[owner] = amount
}
