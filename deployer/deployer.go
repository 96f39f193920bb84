// Package deployer creates constant-product pools at deterministic addresses and
// owns their protocol fee settings.
package deployer

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidBarFee is returned when a protocol fee above MaxFee is set.
	ErrInvalidBarFee = errors.New("invalid bar fee")
	// ErrPoolExists is returned when a pool with the same parameters was already deployed.
	ErrPoolExists = errors.New("pool exists")
	// ErrPoolNotFound is returned by lookups for unknown pools.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrUnauthorized is returned when an owner-only call comes from another account.
	ErrUnauthorized = constantproduct.ErrUnauthorized
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the deployer account, its owner and the dependencies handed to every pool.
type Config struct {
	Address  common.Address
	Owner    common.Address
	BarFee   uint64
	BarFeeTo common.Address
	Ledger   constantproduct.Ledger
	Logger   Logger
	// PoolOptions are applied to every deployed pool after the logger.
	PoolOptions []constantproduct.Option
}

func (c *Config) validate() error {
	if c.Address == (common.Address{}) {
		return errors.New("config: Address cannot be zero")
	}
	if c.Ledger == nil {
		return errors.New("config: Ledger cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	if c.BarFee > constantproduct.MaxFee {
		return fmt.Errorf("config: %w: %d", ErrInvalidBarFee, c.BarFee)
	}
	return nil
}

// MasterDeployer deploys pools and keeps the registry of everything it deployed.
// Its own methods are safe for concurrent use; the pools it returns are not.
type MasterDeployer struct {
	address  common.Address
	owner    common.Address
	ledger   constantproduct.Ledger
	logger   Logger
	poolOpts []constantproduct.Option

	// feeMu is separate from mu because pools read the fee settings while mu is held.
	feeMu    sync.RWMutex
	barFee   uint64
	barFeeTo common.Address

	mu     sync.RWMutex
	pools  map[common.Address]*constantproduct.Pool
	byID   map[uint64]*constantproduct.Pool
	nextID uint64
}

// New creates a MasterDeployer from cfg.
func New(cfg *Config) (*MasterDeployer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	opts := append([]constantproduct.Option{constantproduct.WithLogger(cfg.Logger)}, cfg.PoolOptions...)
	return &MasterDeployer{
		address:  cfg.Address,
		owner:    cfg.Owner,
		ledger:   cfg.Ledger,
		logger:   cfg.Logger,
		poolOpts: opts,
		barFee:   cfg.BarFee,
		barFeeTo: cfg.BarFeeTo,
		pools:    make(map[common.Address]*constantproduct.Pool),
		byID:     make(map[uint64]*constantproduct.Pool),
	}, nil
}

// Address returns the deployer account.
func (d *MasterDeployer) Address() common.Address {
	return d.address
}

// Owner returns the account allowed to change fee settings.
func (d *MasterDeployer) Owner() common.Address {
	return d.owner
}

// BarFee returns the protocol's share of swap fees in basis points.
func (d *MasterDeployer) BarFee() uint64 {
	d.feeMu.RLock()
	defer d.feeMu.RUnlock()
	return d.barFee
}

// BarFeeTo returns the recipient of protocol fee shares.
func (d *MasterDeployer) BarFeeTo() common.Address {
	d.feeMu.RLock()
	defer d.feeMu.RUnlock()
	return d.barFeeTo
}

// canonicalize decodes deployData and re-encodes it with the tokens in ascending
// order so that both argument orders deploy to the same address.
func canonicalize(deployData []byte) (constantproduct.Config, []byte, error) {
	cfg, err := constantproduct.DecodeDeployData(deployData)
	if err != nil {
		return constantproduct.Config{}, nil, err
	}
	if bytes.Compare(cfg.TokenA.Bytes(), cfg.TokenB.Bytes()) > 0 {
		cfg.TokenA, cfg.TokenB = cfg.TokenB, cfg.TokenA
	}
	canonical, err := constantproduct.EncodeDeployData(cfg.TokenA, cfg.TokenB, cfg.SwapFeeBps, cfg.TwapEnabled)
	if err != nil {
		return constantproduct.Config{}, nil, err
	}
	return cfg, canonical, nil
}

// PoolAddress returns the address a pool deployed with deployData would get:
// CREATE2 from the deployer with salt keccak256(deployData) over keccak256(identifier).
func (d *MasterDeployer) PoolAddress(deployData []byte) (common.Address, error) {
	cfg, canonical, err := canonicalize(deployData)
	if err != nil {
		return common.Address{}, err
	}
	return d.poolAddress(cfg, canonical), nil
}

func (d *MasterDeployer) poolAddress(cfg constantproduct.Config, canonical []byte) common.Address {
	salt := crypto.Keccak256Hash(canonical)
	codeHash := crypto.Keccak256([]byte(constantproduct.Identifier(cfg.SwapFeeBps)))
	return crypto.CreateAddress2(d.address, salt, codeHash)
}

// DeployPool creates and registers a pool from an encoded
// (address tokenA, address tokenB, uint256 swapFee, bool twapSupport) payload.
func (d *MasterDeployer) DeployPool(deployData []byte) (*constantproduct.Pool, error) {
	cfg, canonical, err := canonicalize(deployData)
	if err != nil {
		return nil, err
	}
	cfg.Address = d.poolAddress(cfg, canonical)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.pools[cfg.Address]; exists {
		return nil, fmt.Errorf("%w: %s", ErrPoolExists, cfg.Address.Hex())
	}
	cfg.ID = d.nextID + 1

	pool, err := constantproduct.New(cfg, d.ledger, d, d.poolOpts...)
	if err != nil {
		return nil, err
	}
	d.nextID = cfg.ID
	d.pools[cfg.Address] = pool
	d.byID[cfg.ID] = pool

	d.logger.Info("pool deployed",
		"id", cfg.ID,
		"address", cfg.Address,
		"tokenA", pool.GetAssets()[0],
		"tokenB", pool.GetAssets()[1],
		"identifier", pool.PoolIdentifier(),
		"twap", cfg.TwapEnabled,
	)
	return pool, nil
}

// Pool returns the pool deployed at address.
func (d *MasterDeployer) Pool(address common.Address) (*constantproduct.Pool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pool, ok := d.pools[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, address.Hex())
	}
	return pool, nil
}

// PoolByID returns the pool with registry id id.
func (d *MasterDeployer) PoolByID(id uint64) (*constantproduct.Pool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pool, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrPoolNotFound, id)
	}
	return pool, nil
}

// Pools returns every deployed pool ordered by id.
func (d *MasterDeployer) Pools() []*constantproduct.Pool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pools := make([]*constantproduct.Pool, 0, len(d.byID))
	for _, pool := range d.byID {
		pools = append(pools, pool)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID() < pools[j].ID() })
	return pools
}

// Views returns the serializable state of every deployed pool ordered by id.
func (d *MasterDeployer) Views() []constantproduct.PoolView {
	pools := d.Pools()
	views := make([]constantproduct.PoolView, len(pools))
	for i, pool := range pools {
		views[i] = pool.View()
	}
	return views
}

// SetBarFee changes the protocol fee and pushes it to every pool.
func (d *MasterDeployer) SetBarFee(caller common.Address, barFee uint64) error {
	if caller != d.owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	if barFee > constantproduct.MaxFee {
		return fmt.Errorf("%w: %d", ErrInvalidBarFee, barFee)
	}
	d.feeMu.Lock()
	d.barFee = barFee
	d.feeMu.Unlock()

	d.logger.Info("bar fee updated", "barFee", barFee)
	return d.updatePools()
}

// SetBarFeeTo changes the protocol fee recipient and pushes it to every pool.
func (d *MasterDeployer) SetBarFeeTo(caller, barFeeTo common.Address) error {
	if caller != d.owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	d.feeMu.Lock()
	d.barFeeTo = barFeeTo
	d.feeMu.Unlock()

	d.logger.Info("bar fee recipient updated", "barFeeTo", barFeeTo)
	return d.updatePools()
}

func (d *MasterDeployer) updatePools() error {
	var errs []error
	for _, pool := range d.Pools() {
		if err := pool.UpdateBarFee(d.address); err != nil {
			d.logger.Warn("failed to update pool bar fee", "pool", pool.Address(), "error", err)
			errs = append(errs, fmt.Errorf("pool %s: %w", pool.Address().Hex(), err))
		}
	}
	return errors.Join(errs...)
}
