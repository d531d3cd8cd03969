package staking

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"LovelyStaking/internal/model"
	"LovelyStaking/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Options are the construction-time parameters of a Service. None of them can
// change afterwards except the owner, which moves via TransferOwnership.
type Options struct {
	Token            common.Address // token the pools are denominated in
	Contract         common.Address // the service's own account on the token ledger
	Owner            common.Address
	MaxDaysToClose   uint64 // deposit window for fixed pools, from launch
	MaxTokensPerPool uint256.Int
	PoolDurations    []uint64 // days
	PoolAPYs         []uint64 // basis points
	LaunchTime       time.Time
	StateFile        string
	Now              func() time.Time
	Logger           *zap.Logger
	Sinks            []EventSink
}

type poolKey struct {
	account common.Address
	pool    uint64
}

type slotKey struct {
	account common.Address
	pool    uint64
	slot    uint64
}

// Service is the staking ledger. One mutation runs at a time and a second one
// started meanwhile fails with ErrReentrant. Queries take a read lock and see
// only committed state.
type Service struct {
	mu   sync.RWMutex
	busy atomic.Bool

	ledger   token.Ledger
	registry *Registry
	token    common.Address
	contract common.Address
	owner    common.Address
	capacity uint256.Int
	deadline time.Time
	launch   time.Time

	deposits    map[poolKey][]model.Deposit
	pending     map[slotKey]uint256.Int
	earnings    map[common.Address]uint256.Int
	fund        uint256.Int
	totalStaked uint256.Int

	now       func() time.Time
	stateFile string
	sinks     []EventSink
	log       *zap.Logger
}

// New creates a Service, restoring state from opts.StateFile when it exists.
func New(ledger token.Ledger, opts Options) (*Service, error) {
	registry, err := NewRegistry(opts.PoolDurations, opts.PoolAPYs)
	if err != nil {
		return nil, err
	}
	if opts.Contract == (common.Address{}) {
		return nil, fmt.Errorf("contract address: %w", ErrZeroAddress)
	}
	if opts.Owner == (common.Address{}) {
		return nil, fmt.Errorf("owner address: %w", ErrZeroAddress)
	}
	if opts.MaxDaysToClose > model.MaxDurationDays {
		return nil, fmt.Errorf("deposit window of %d days: %w", opts.MaxDaysToClose, ErrDurationTooLong)
	}

	s := &Service{
		registry:  registry,
		token:     opts.Token,
		contract:  opts.Contract,
		owner:     opts.Owner,
		capacity:  opts.MaxTokensPerPool,
		deposits:  make(map[poolKey][]model.Deposit),
		pending:   make(map[slotKey]uint256.Int),
		earnings:  make(map[common.Address]uint256.Int),
		now:       opts.Now,
		stateFile: opts.StateFile,
		sinks:     opts.Sinks,
		log:       opts.Logger,
	}
	s.ledger = unlocked{ledger: ledger, mu: &s.mu}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}

	s.launch = opts.LaunchTime
	if s.launch.IsZero() {
		s.launch = s.clock()
	}

	if s.stateFile != "" {
		st, err := LoadState(s.stateFile)
		if err != nil {
			return nil, fmt.Errorf("load ledger state: %w", err)
		}
		if err := s.restore(st); err != nil {
			return nil, fmt.Errorf("restore ledger state: %w", err)
		}
	}
	s.deadline = s.launch.Add(time.Duration(opts.MaxDaysToClose) * 24 * time.Hour)

	if err := s.save(); err != nil {
		return nil, err
	}

	s.log.Info("staking ledger ready",
		zap.String("contract", s.contract.Hex()),
		zap.String("token", s.token.Hex()),
		zap.Int("pools", registry.Len()),
		zap.Time("deposit_deadline", s.deadline))
	return s, nil
}

// AddSink registers an event sink. It must be called before the service is shared.
func (s *Service) AddSink(sink EventSink) {
	s.sinks = append(s.sinks, sink)
}

// clock returns the current time at second resolution.
func (s *Service) clock() time.Time {
	return s.now().Truncate(time.Second)
}

func (s *Service) save() error {
	if s.stateFile == "" {
		return nil
	}
	return SaveState(s.stateFile, s.snapshot())
}

func (s *Service) slot(account common.Address, poolID, idx uint64) (*model.Pool, *model.Deposit, error) {
	pool, err := s.registry.pool(poolID)
	if err != nil {
		return nil, nil, err
	}
	slots := s.deposits[poolKey{account, poolID}]
	if idx >= uint64(len(slots)) {
		return nil, nil, fmt.Errorf("pool %d slot %d: %w", poolID, idx, ErrUnknownSlot)
	}
	return pool, &slots[idx], nil
}

func (s *Service) credit(account common.Address, amount *uint256.Int) {
	e := s.earnings[account]
	e.Add(&e, amount)
	s.earnings[account] = e
}
