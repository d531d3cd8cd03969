package staking

import (
	"context"
	"sync"
	"testing"
	"time"

	"LovelyStaking/internal/model"
	"LovelyStaking/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	contract = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	tokenAdr = common.HexToAddress("0x0000000000000000000000000000000000007070")
)

var genesis = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func tokens(n uint64) uint256.Int { return model.Tokens(n, 18) }

func dec(v uint256.Int) string { return v.Dec() }

func isZero(v uint256.Int) bool { return v.IsZero() }

func maxAmount() uint256.Int {
	var v uint256.Int
	v.SetAllOne()
	return v
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type captureSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (c *captureSink) HandleEvent(evt *model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, *evt)
	return nil
}

func (c *captureSink) kinds() []model.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.EventKind, len(c.events))
	for i, e := range c.events {
		out[i] = e.Kind
	}
	return out
}

func (c *captureSink) last() model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func (c *captureSink) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	ledger *token.MemoryLedger
	clock  *fakeClock
	sink   *captureSink
	opts   Options
	svc    *Service
}

// newFixture builds a service with three pools: flexible at 3.5%, 30 days at
// 5% and 90 days at 12%. Fixed pools accept deposits for 30 days.
func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		ledger: token.NewMemoryLedger(),
		clock:  &fakeClock{t: genesis},
		sink:   &captureSink{},
	}
	f.opts = Options{
		Token:            tokenAdr,
		Contract:         contract,
		Owner:            owner,
		MaxDaysToClose:   30,
		MaxTokensPerPool: tokens(1_000_000),
		PoolDurations:    []uint64{0, 30, 90},
		PoolAPYs:         []uint64{350, 500, 1200},
		Now:              f.clock.Now,
		Logger:           zap.NewNop(),
		Sinks:            []EventSink{f.sink},
	}
	for _, m := range mutate {
		m(&f.opts)
	}
	svc, err := New(f.ledger, f.opts)
	require.NoError(t, err)
	f.svc = svc
	return f
}

// give mints n tokens to account and approves the contract to spend them all.
func (f *fixture) give(account common.Address, n uint64) {
	f.ledger.Mint(account, tokens(n))
	f.ledger.Approve(account, contract, maxAmount())
}

// seedFund puts n tokens into the reward fund from the owner.
func (f *fixture) seedFund(n uint64) {
	f.t.Helper()
	f.give(owner, n)
	_, err := f.svc.FundRewards(f.ctx, owner, tokens(n))
	require.NoError(f.t, err)
}

func (f *fixture) stake(account common.Address, pool, n uint64) uint64 {
	f.t.Helper()
	slot, _, err := f.svc.Stake(f.ctx, account, pool, tokens(n))
	require.NoError(f.t, err)
	return slot
}

func (f *fixture) balance(account common.Address) uint256.Int {
	f.t.Helper()
	b, err := f.ledger.BalanceOf(f.ctx, account)
	require.NoError(f.t, err)
	return b
}
