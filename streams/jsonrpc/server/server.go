// Package server exposes deployed pools and the token ledger over go-ethereum JSON-RPC
// and streams pool state to subscribers.
package server

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/defistate/cpamm-go/differ"
	"github.com/defistate/cpamm-go/engine"
	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

const (
	// PoolNamespace is the namespace of the pool API and the state stream.
	PoolNamespace = "pool"
	// LedgerNamespace is the namespace of the token ledger API.
	LedgerNamespace = "ledger"
	// DeployerNamespace is the namespace of the protocol fee API.
	DeployerNamespace = "deployer"

	defaultBufferSize = 64
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Registry resolves deployed pools.
type Registry interface {
	Pool(address common.Address) (*constantproduct.Pool, error)
	Views() []constantproduct.PoolView
}

// Ledger is the token ledger the pools trade against.
type Ledger interface {
	BalanceOf(token, owner common.Address) *uint256.Int
	Transfer(token, from, to common.Address, amount *uint256.Int) error
}

// FeeSetter changes the protocol fee settings of every deployed pool.
type FeeSetter interface {
	SetBarFee(caller common.Address, barFee uint64) error
	SetBarFeeTo(caller, barFeeTo common.Address) error
}

// StateDiffer computes the diff published after each mutation.
type StateDiffer interface {
	Diff(old, new *engine.State) (*differ.StateDiff, error)
}

// Config holds the dependencies of a Service.
type Config struct {
	Registry Registry
	Ledger   Ledger
	Differ   StateDiffer
	Logger   Logger

	// Fees is optional; the deployer API is only served when it is set.
	Fees FeeSetter

	// BufferSize is the number of events queued per subscriber before it is resynced.
	BufferSize uint
}

func (c *Config) validate() error {
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	if c.Ledger == nil {
		return errors.New("config: Ledger is required")
	}
	if c.Differ == nil {
		return errors.New("config: Differ is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// SubscriptionEvent is the envelope of every state stream notification.
// Type is "full" (Payload is an engine.State) or "diff" (Payload is a differ.StateDiff).
type SubscriptionEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	SentAt  int64  `json:"sentAt"`
}

type subscriber struct {
	events chan *SubscriptionEvent

	// stale is set when an event was dropped; the next event sent is a full state.
	stale bool
}

// Service serves the pool and ledger APIs. Every call that reads or writes pools
// runs under one mutex, so pools see the serialized access they require.
type Service struct {
	registry   Registry
	ledger     Ledger
	fees       FeeSetter
	differ     StateDiffer
	logger     Logger
	bufferSize uint

	mu    sync.Mutex
	state *engine.State
	subs  map[rpc.ID]*subscriber
}

// New creates a Service and captures the initial state at sequence 0.
func New(cfg *Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	bufferSize := cfg.BufferSize
	if bufferSize == 0 {
		bufferSize = defaultBufferSize
	}
	s := &Service{
		registry:   cfg.Registry,
		ledger:     cfg.Ledger,
		fees:       cfg.Fees,
		differ:     cfg.Differ,
		logger:     cfg.Logger,
		bufferSize: bufferSize,
		subs:       make(map[rpc.ID]*subscriber),
	}
	s.state = s.captureLocked(0)
	return s, nil
}

// Register registers the pool and ledger APIs on server, and the deployer API when
// fee settings are configured.
func (s *Service) Register(server *rpc.Server) error {
	if err := server.RegisterName(PoolNamespace, &PoolAPI{s: s}); err != nil {
		return fmt.Errorf("failed to register %s API: %w", PoolNamespace, err)
	}
	if err := server.RegisterName(LedgerNamespace, &LedgerAPI{s: s}); err != nil {
		return fmt.Errorf("failed to register %s API: %w", LedgerNamespace, err)
	}
	if s.fees == nil {
		return nil
	}
	if err := server.RegisterName(DeployerNamespace, &DeployerAPI{s: s}); err != nil {
		return fmt.Errorf("failed to register %s API: %w", DeployerNamespace, err)
	}
	return nil
}

// State returns the last published state.
func (s *Service) State() *engine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Publish captures the pools after a change made outside the service and streams it.
func (s *Service) Publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked()
}

// Pools returns a view of every deployed pool.
func (s *Service) Pools() []constantproduct.PoolView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Views()
}

// Pool returns a view of the pool at address.
func (s *Service) Pool(address common.Address) (constantproduct.PoolView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.registry.Pool(address)
	if err != nil {
		return constantproduct.PoolView{}, err
	}
	return p.View(), nil
}

// GetAmountOut quotes selling amountIn of tokenIn to the pool at address.
func (s *Service) GetAmountOut(address, tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.registry.Pool(address)
	if err != nil {
		return nil, err
	}
	return p.GetAmountOut(tokenIn, amountIn)
}

// GetAmountIn quotes buying amountOut of tokenOut from the pool at address.
func (s *Service) GetAmountIn(address, tokenOut common.Address, amountOut *uint256.Int) (*uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.registry.Pool(address)
	if err != nil {
		return nil, err
	}
	return p.GetAmountIn(tokenOut, amountOut)
}

// read runs fn under the service lock.
func (s *Service) read(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// write runs fn under the service lock and publishes the new state if it succeeds.
func (s *Service) write(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	s.publishLocked()
	return nil
}

func (s *Service) captureLocked(sequence uint64) *engine.State {
	return &engine.State{
		Sequence:  sequence,
		Timestamp: uint64(time.Now().UnixNano()),
		Protocols: map[engine.ProtocolID]engine.ProtocolState{
			constantproduct.ProtocolID: {
				Meta:   constantproduct.Meta,
				Schema: constantproduct.Schema,
				Data:   s.registry.Views(),
			},
		},
	}
}

func (s *Service) publishLocked() {
	next := s.captureLocked(s.state.Sequence + 1)
	diff, err := s.differ.Diff(s.state, next)
	s.state = next
	if err != nil {
		s.logger.Error("failed to diff state, resyncing subscribers", "sequence", next.Sequence, "error", err)
		for _, sub := range s.subs {
			sub.stale = true
		}
	}

	now := time.Now().UnixNano()
	for id, sub := range s.subs {
		event := &SubscriptionEvent{Type: "diff", Payload: diff, SentAt: now}
		if sub.stale {
			event = &SubscriptionEvent{Type: "full", Payload: next, SentAt: now}
		}
		select {
		case sub.events <- event:
			sub.stale = false
		default:
			s.logger.Warn("subscriber buffer full, dropping event", "subscription", id, "sequence", next.Sequence)
			sub.stale = true
		}
	}
}

func (s *Service) subscribe(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return nil, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()
	sub := &subscriber{events: make(chan *SubscriptionEvent, s.bufferSize)}

	s.mu.Lock()
	sub.events <- &SubscriptionEvent{Type: "full", Payload: s.state, SentAt: time.Now().UnixNano()}
	s.subs[rpcSub.ID] = sub
	s.mu.Unlock()
	s.logger.Info("state stream subscriber added", "subscription", rpcSub.ID)

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.subs, rpcSub.ID)
			s.mu.Unlock()
			s.logger.Info("state stream subscriber removed", "subscription", rpcSub.ID)
		}()
		for {
			select {
			case event := <-sub.events:
				if err := notifier.Notify(rpcSub.ID, event); err != nil {
					s.logger.Warn("failed to notify subscriber", "subscription", rpcSub.ID, "error", err)
					return
				}
			case <-rpcSub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

// revertError marks a failed pool or ledger operation. It carries JSON-RPC error
// code 3, the code of a reverted call.
type revertError struct {
	err error
}

func (e *revertError) Error() string          { return e.err.Error() }
func (e *revertError) Unwrap() error          { return e.err }
func (e *revertError) ErrorCode() int         { return 3 }
func (e *revertError) ErrorData() interface{} { return e.err.Error() }

func reverted(err error) error {
	if err == nil {
		return nil
	}
	return &revertError{err: err}
}

// toUint256 converts an RPC quantity. A missing or oversized amount is invalid.
func toUint256(amount *hexutil.Big) (*uint256.Int, error) {
	if amount == nil {
		return nil, errors.New("missing amount")
	}
	v, overflow := uint256.FromBig((*big.Int)(amount))
	if overflow {
		return nil, fmt.Errorf("amount %s does not fit in 256 bits", (*big.Int)(amount))
	}
	return v, nil
}

func toBig(v *uint256.Int) *hexutil.Big {
	return (*hexutil.Big)(v.ToBig())
}
