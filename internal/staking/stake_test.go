package staking

import (
	"context"
	"errors"
	"testing"
	"time"

	"LovelyStaking/internal/model"
	"LovelyStaking/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStake_OpensSlot(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 5000)

	slot, received, err := f.svc.Stake(f.ctx, alice, 1, tokens(1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), slot)
	assert.Equal(t, dec(tokens(1000)), dec(received))

	dep, err := f.svc.Deposit(alice, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(tokens(1000)), dec(dep.Amount))
	assert.Equal(t, genesis, dep.StartTime)
	assert.Equal(t, genesis.Add(30*day), dep.EndTime)
	assert.Equal(t, genesis, dep.LastSettledTime)

	pool, err := f.svc.Pool(1)
	require.NoError(t, err)
	assert.Equal(t, dec(tokens(1000)), dec(pool.TotalStaked))
	assert.Equal(t, dec(tokens(1000)), dec(f.svc.TotalStaked()))
	assert.Equal(t, dec(tokens(4000)), dec(f.balance(alice)))
	assert.Equal(t, dec(tokens(1000)), dec(f.balance(contract)))

	evt := f.sink.last()
	assert.Equal(t, model.EventStaked, evt.Kind)
	assert.Equal(t, alice, evt.Account)
	assert.Equal(t, uint64(1), evt.PoolID)
	assert.Equal(t, uint64(0), evt.Slot)
	assert.Equal(t, genesis, evt.Timestamp)
}

func TestStake_RecordsMeasuredAmount(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 5000)
	f.ledger.SetTransferFee(100) // 1%

	_, received, err := f.svc.Stake(f.ctx, alice, 0, tokens(1000))
	require.NoError(t, err)
	assert.Equal(t, dec(tokens(990)), dec(received))

	dep, err := f.svc.Deposit(alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(tokens(990)), dec(dep.Amount))
	assert.Equal(t, dec(tokens(990)), dec(f.svc.TotalStaked()))
}

func TestStake_ZeroAmountFails(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 100)

	for _, pool := range []uint64{0, 1, 2} {
		_, _, err := f.svc.Stake(f.ctx, alice, pool, uint256.Int{})
		assert.ErrorIs(t, err, ErrZeroAmount)
		assert.Zero(t, f.svc.SlotCount(alice, pool))
	}
	assert.True(t, isZero(f.svc.TotalStaked()))
	assert.Equal(t, dec(tokens(100)), dec(f.balance(alice)))
	assert.Empty(t, f.sink.kinds())
}

func TestStake_UnknownPool(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 100)

	_, _, err := f.svc.Stake(f.ctx, alice, 3, tokens(1))
	assert.ErrorIs(t, err, ErrUnknownPool)
}

func TestStake_DepositWindow(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 5000)

	f.clock.Advance(30 * day)
	f.stake(alice, 1, 100)

	f.clock.Advance(time.Second)
	_, _, err := f.svc.Stake(f.ctx, alice, 1, tokens(100))
	assert.ErrorIs(t, err, ErrWindowClosed)
	_, _, err = f.svc.Stake(f.ctx, alice, 2, tokens(100))
	assert.ErrorIs(t, err, ErrWindowClosed)

	// the flexible pool never closes
	f.clock.Advance(365 * day)
	f.stake(alice, 0, 100)
	assert.Equal(t, uint64(1), f.svc.SlotCount(alice, 1))
	assert.Equal(t, uint64(1), f.svc.SlotCount(alice, 0))
}

func TestStake_PoolCap(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.MaxTokensPerPool = tokens(1500) })
	f.give(alice, 10000)

	f.stake(alice, 1, 1000)
	_, _, err := f.svc.Stake(f.ctx, alice, 1, tokens(600))
	assert.ErrorIs(t, err, ErrPoolCapExceeded)
	f.stake(alice, 1, 500)

	// caps apply per pool, and not to the flexible pool
	f.stake(alice, 2, 1500)
	f.stake(alice, 0, 3000)

	pool, err := f.svc.Pool(1)
	require.NoError(t, err)
	assert.Equal(t, dec(tokens(1500)), dec(pool.TotalStaked))
}

func TestStake_BalanceAndAllowance(t *testing.T) {
	f := newFixture(t)
	f.ledger.Mint(alice, tokens(100))

	_, _, err := f.svc.Stake(f.ctx, alice, 0, tokens(50))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	f.ledger.Approve(alice, contract, tokens(500))
	_, _, err = f.svc.Stake(f.ctx, alice, 0, tokens(101))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Zero(t, f.svc.SlotCount(alice, 0))
	assert.Equal(t, dec(tokens(100)), dec(f.balance(alice)))
}

func TestStake_LedgerFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 100)

	for _, op := range []token.Op{token.OpBalanceOf, token.OpAllowance, token.OpTransferFrom} {
		f.ledger.FailNext(op, errors.New("ledger down"))
		_, _, err := f.svc.Stake(f.ctx, alice, 0, tokens(10))
		assert.ErrorIs(t, err, ErrTokenLedger, "op %s", op)
	}
	assert.Zero(t, f.svc.SlotCount(alice, 0))
	assert.True(t, isZero(f.svc.TotalStaked()))
	assert.Equal(t, dec(tokens(100)), dec(f.balance(alice)))
	assert.Empty(t, f.sink.kinds())
}

func TestStake_TotalsMatchOpenSlots(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 10000)
	f.give(bob, 10000)
	f.ledger.SetTransferFee(37)

	f.stake(alice, 1, 1000)
	f.stake(bob, 1, 333)
	f.stake(alice, 1, 17)
	f.stake(bob, 2, 250)

	f.clock.Advance(30 * day)
	_, _, err := f.svc.Unstake(f.ctx, bob, 1, 0)
	require.NoError(t, err)

	for _, pid := range []uint64{0, 1, 2} {
		var sum uint256.Int
		for _, account := range []common.Address{alice, bob} {
			deps, err := f.svc.Deposits(account, pid)
			require.NoError(t, err)
			for i := range deps {
				sum.Add(&sum, &deps[i].Amount)
			}
		}
		pool, err := f.svc.Pool(pid)
		require.NoError(t, err)
		assert.Equal(t, dec(sum), dec(pool.TotalStaked), "pool %d", pid)
	}
}

func TestStake_SlotsAreNeverReused(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)

	assert.Equal(t, uint64(0), f.stake(alice, 0, 100))
	_, _, err := f.svc.Unstake(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.stake(alice, 0, 200))

	closed, err := f.svc.Deposit(alice, 0, 0)
	require.NoError(t, err)
	assert.True(t, closed.Amount.IsZero())
	assert.True(t, closed.StartTime.IsZero())

	open, err := f.svc.Deposit(alice, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, dec(tokens(200)), dec(open.Amount))
}

func TestStake_ReentrantCallFails(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)

	var inner error
	armed := true
	f.ledger.AddHook(func(ctx context.Context, op token.Op, from, to common.Address, amount uint256.Int) error {
		if op != token.OpTransferFrom || !armed {
			return nil
		}
		armed = false
		_, _, inner = f.svc.Stake(ctx, alice, 0, tokens(1))
		return inner
	})

	_, _, err := f.svc.Stake(f.ctx, alice, 0, tokens(500))
	assert.ErrorIs(t, inner, ErrReentrant)
	assert.ErrorIs(t, err, ErrReentrant)
	assert.ErrorIs(t, err, ErrTokenLedger)

	assert.Zero(t, f.svc.SlotCount(alice, 0))
	assert.True(t, isZero(f.svc.TotalStaked()))
	assert.Equal(t, dec(tokens(1000)), dec(f.balance(alice)))
	assert.True(t, isZero(f.balance(contract)))
	assert.Empty(t, f.sink.kinds())

	// the guard is released after the failed call
	f.stake(alice, 0, 500)
}

func TestUnstake_LockedUntilMaturity(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 1, 1000)

	f.clock.Advance(30*day - 1)
	_, _, err := f.svc.Unstake(f.ctx, alice, 1, 0)
	assert.ErrorIs(t, err, ErrStillLocked)

	dep, err := f.svc.Deposit(alice, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(tokens(1000)), dec(dep.Amount))
}

func TestUnstake_LongestLockHolds(t *testing.T) {
	longest := model.MaxDurationDays
	f := newFixture(t, func(o *Options) {
		o.PoolDurations = []uint64{0, longest}
		o.PoolAPYs = []uint64{350, 500}
		o.MaxDaysToClose = longest
	})
	f.give(alice, 1000)

	f.clock.Advance(time.Duration(longest-1) * day)
	f.stake(alice, 1, 1000)

	dep, err := f.svc.Deposit(alice, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, dep.StartTime.Add(time.Duration(longest)*day), dep.EndTime)
	assert.True(t, dep.EndTime.After(dep.StartTime))

	_, _, err = f.svc.Unstake(f.ctx, alice, 1, 0)
	assert.ErrorIs(t, err, ErrStillLocked)
}

func TestUnstake_AtMaturityReturnsPrincipal(t *testing.T) {
	f := newFixture(t)
	f.seedFund(1000)
	f.give(alice, 1000)
	f.stake(alice, 1, 1000)

	f.clock.Advance(30 * day)
	owed, err := f.svc.PendingRewards(alice, 1, 0)
	require.NoError(t, err)
	require.False(t, owed.IsZero())

	principal, rewards, err := f.svc.Unstake(f.ctx, alice, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(tokens(1000)), dec(principal))
	assert.Equal(t, dec(owed), dec(rewards))

	var want uint256.Int
	want.Add(&principal, &rewards)
	assert.Equal(t, dec(want), dec(f.balance(alice)))

	dep, err := f.svc.Deposit(alice, 1, 0)
	require.NoError(t, err)
	assert.True(t, dep.Amount.IsZero())
	assert.Equal(t, dec(rewards), dec(dep.TotalRewardsPaid))
	assert.True(t, isZero(f.svc.TotalStaked()))
	assert.Equal(t, dec(rewards), dec(f.svc.LifetimeEarnings(alice)))

	assert.Equal(t, []model.EventKind{
		model.EventFundReplenished,
		model.EventStaked,
		model.EventRewardsWithdrawn,
		model.EventUnstaked,
	}, f.sink.kinds())
}

func TestUnstake_ClosedSlotFails(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 0, 100)

	_, _, err := f.svc.Unstake(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	_, _, err = f.svc.Unstake(f.ctx, alice, 0, 0)
	assert.ErrorIs(t, err, ErrSlotClosed)

	_, _, err = f.svc.Unstake(f.ctx, alice, 0, 7)
	assert.ErrorIs(t, err, ErrUnknownSlot)
	_, _, err = f.svc.Unstake(f.ctx, bob, 0, 0)
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestUnstake_FlexiblePoolHasNoLock(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 0, 400)

	principal, rewards, err := f.svc.Unstake(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(tokens(400)), dec(principal))
	assert.True(t, rewards.IsZero())
	assert.Equal(t, dec(tokens(1000)), dec(f.balance(alice)))
}

func TestUnstake_DefersRewardsWhenFundEmpty(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 1, 1000)

	f.clock.Advance(45 * day)
	owed, err := f.svc.PendingRewards(alice, 1, 0)
	require.NoError(t, err)

	principal, rewards, err := f.svc.Unstake(f.ctx, alice, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(tokens(1000)), dec(principal))
	assert.True(t, rewards.IsZero())
	assert.Equal(t, dec(tokens(1000)), dec(f.balance(alice)))
	assert.Equal(t, dec(owed), dec(f.svc.DeferredRewards(alice, 1, 0)))

	// the closed slot keeps its claim on the deferred amount
	f.seedFund(1000)
	paid, _, err := f.svc.WithdrawRewards(f.ctx, alice, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(owed), dec(paid))
	assert.True(t, isZero(f.svc.DeferredRewards(alice, 1, 0)))
}

func TestUnstake_TransferFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.seedFund(1000)
	f.give(alice, 1000)
	f.stake(alice, 0, 1000)
	f.clock.Advance(10 * day)
	f.sink.reset()

	f.ledger.FailNext(token.OpTransfer, errors.New("paused"))
	_, _, err := f.svc.Unstake(f.ctx, alice, 0, 0)
	assert.ErrorIs(t, err, ErrTokenLedger)

	dep, err := f.svc.Deposit(alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(tokens(1000)), dec(dep.Amount))
	assert.Equal(t, genesis, dep.LastSettledTime)
	assert.Equal(t, dec(tokens(1000)), dec(f.svc.RewardFund()))
	assert.Equal(t, dec(tokens(1000)), dec(f.svc.TotalStaked()))
	assert.Empty(t, f.sink.kinds())
}
