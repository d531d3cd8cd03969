package staking

import (
	"errors"
	"testing"

	"LovelyStaking/internal/model"
	"LovelyStaking/internal/token"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccrual_FlexibleYear(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 0, 1000)

	f.clock.Advance(365 * day)
	owed, err := f.svc.PendingRewards(alice, 0, 0)
	require.NoError(t, err)

	// 3.5% of 1000 tokens, less the rate's rounding
	assert.Equal(t, "34999999387200000000", dec(owed))
	assert.InEpsilon(t, 35e18, owed.Float64(), 1e-6)
}

func TestAccrual_FixedPoolStopsAtMaturity(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 1, 1000)

	f.clock.Advance(30 * day)
	atMaturity, err := f.svc.PendingRewards(alice, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "49999999852800000000", dec(atMaturity))

	f.clock.Advance(30 * day)
	later, err := f.svc.PendingRewards(alice, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(atMaturity), dec(later))
}

func TestAccrual_Monotonic(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 2, 700)

	var prev uint256.Int
	for i := 0; i < 20; i++ {
		f.clock.Advance(7 * day)
		owed, err := f.svc.PendingRewards(alice, 2, 0)
		require.NoError(t, err)
		assert.False(t, owed.Lt(&prev), "step %d", i)
		prev = owed
	}
}

func TestAccrual_SumsAcrossSlots(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 0, 100)
	f.stake(alice, 0, 300)

	f.clock.Advance(10 * day)
	first, err := f.svc.PendingRewards(alice, 0, 0)
	require.NoError(t, err)
	second, err := f.svc.PendingRewards(alice, 0, 1)
	require.NoError(t, err)

	var want uint256.Int
	want.Add(&first, &second)
	total, err := f.svc.PoolPendingRewards(alice, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(want), dec(total))

	_, err = f.svc.PendingRewards(alice, 0, 2)
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestWithdrawRewards_ResetsBaseline(t *testing.T) {
	f := newFixture(t)
	f.seedFund(1000)
	f.give(alice, 1000)
	f.stake(alice, 0, 1000)

	f.clock.Advance(10 * day)
	owed, err := f.svc.PendingRewards(alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "958904092800000000", dec(owed))

	paid, deferred, err := f.svc.WithdrawRewards(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(owed), dec(paid))
	assert.True(t, isZero(deferred))

	after, err := f.svc.PendingRewards(alice, 0, 0)
	require.NoError(t, err)
	assert.True(t, after.IsZero())

	dep, err := f.svc.Deposit(alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(owed), dec(dep.TotalRewardsPaid))
	assert.Equal(t, genesis.Add(10*day), dep.LastSettledTime)
	assert.Equal(t, dec(owed), dec(f.svc.LifetimeEarnings(alice)))
	assert.Equal(t, dec(owed), dec(f.balance(alice)))

	var fund uint256.Int
	seeded := tokens(1000)
	fund.Sub(&seeded, &owed)
	assert.Equal(t, dec(fund), dec(f.svc.RewardFund()))

	// the next period accrues from the settlement, not from the start
	f.clock.Advance(10 * day)
	again, err := f.svc.PendingRewards(alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(owed), dec(again))

	evt := f.sink.last()
	assert.Equal(t, model.EventRewardsWithdrawn, evt.Kind)
	assert.Equal(t, dec(owed), dec(evt.Amount))
}

func TestWithdrawRewards_NothingOwed(t *testing.T) {
	f := newFixture(t)
	f.seedFund(1000)
	f.give(alice, 1000)
	f.stake(alice, 0, 1000)

	_, _, err := f.svc.WithdrawRewards(f.ctx, alice, 0, 0)
	assert.ErrorIs(t, err, ErrNothingToWithdraw)

	_, _, err = f.svc.WithdrawRewards(f.ctx, bob, 0, 0)
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestWithdrawRewards_DefersWhenFundShort(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 0, 1000)

	f.clock.Advance(10 * day)
	owed, err := f.svc.PendingRewards(alice, 0, 0)
	require.NoError(t, err)

	paid, deferred, err := f.svc.WithdrawRewards(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.True(t, isZero(paid))
	assert.Equal(t, dec(owed), dec(deferred))
	assert.Equal(t, dec(owed), dec(f.svc.DeferredRewards(alice, 0, 0)))
	assert.True(t, isZero(f.balance(alice)))
	assert.Equal(t, model.EventRewardsDeferred, f.sink.last().Kind)

	// still owed, and nothing accrues twice
	still, err := f.svc.PendingRewards(alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(owed), dec(still))

	f.seedFund(1000)
	paid, deferred, err = f.svc.WithdrawRewards(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(owed), dec(paid))
	assert.True(t, isZero(deferred))
	assert.True(t, isZero(f.svc.DeferredRewards(alice, 0, 0)))
	assert.Equal(t, dec(owed), dec(f.balance(alice)))
}

func TestWithdrawRewards_PendingIsPerSlot(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 0, 100)
	f.stake(alice, 0, 300)

	f.clock.Advance(10 * day)
	_, first, err := f.svc.WithdrawRewards(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	_, second, err := f.svc.WithdrawRewards(f.ctx, alice, 0, 1)
	require.NoError(t, err)

	var tripled uint256.Int
	tripled.Mul(&first, uint256.NewInt(3))
	assert.Equal(t, dec(tripled), dec(second))
	assert.Equal(t, dec(first), dec(f.svc.DeferredRewards(alice, 0, 0)))
	assert.Equal(t, dec(second), dec(f.svc.DeferredRewards(alice, 0, 1)))
}

func TestWithdrawRewards_ClosedSlotPaysDeferred(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 0, 1000)

	f.clock.Advance(10 * day)
	_, _, err := f.svc.Unstake(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	deferred := f.svc.DeferredRewards(alice, 0, 0)
	require.False(t, deferred.IsZero())

	f.seedFund(1000)
	f.clock.Advance(10 * day)
	paid, _, err := f.svc.WithdrawRewards(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, dec(deferred), dec(paid))

	_, _, err = f.svc.WithdrawRewards(f.ctx, alice, 0, 0)
	assert.ErrorIs(t, err, ErrNothingToWithdraw)
}

func TestStake_PaysDeferredRewards(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 2000)
	f.stake(alice, 0, 1000)

	f.clock.Advance(10 * day)
	_, deferred, err := f.svc.WithdrawRewards(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	require.False(t, deferred.IsZero())

	f.seedFund(1000)
	f.clock.Advance(5 * day)
	f.sink.reset()
	assert.Equal(t, uint64(1), f.stake(alice, 0, 100))

	assert.Equal(t, []model.EventKind{model.EventRewardsWithdrawn, model.EventStaked}, f.sink.kinds())
	assert.True(t, isZero(f.svc.DeferredRewards(alice, 0, 0)))
	assert.Equal(t, dec(deferred), dec(f.svc.LifetimeEarnings(alice)))

	// paying a deferred balance leaves the slot's accrual alone
	dep, err := f.svc.Deposit(alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, genesis.Add(10*day), dep.LastSettledTime)
	assert.Equal(t, dec(deferred), dec(dep.TotalRewardsPaid))

	var wantBalance uint256.Int
	left := tokens(900)
	wantBalance.Add(&left, &deferred)
	assert.Equal(t, dec(wantBalance), dec(f.balance(alice)))
}

func TestStake_PaysDeferredRewardsFromOtherPools(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 2000)
	f.stake(alice, 0, 1000)

	f.clock.Advance(10 * day)
	_, deferred, err := f.svc.WithdrawRewards(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	require.False(t, deferred.IsZero())

	f.seedFund(1000)
	f.sink.reset()
	assert.Equal(t, uint64(0), f.stake(alice, 1, 100))

	evts := f.sink.events
	require.Len(t, evts, 2)
	assert.Equal(t, model.EventRewardsWithdrawn, evts[0].Kind)
	assert.Equal(t, uint64(0), evts[0].PoolID)
	assert.Equal(t, dec(deferred), dec(evts[0].Amount))
	assert.Equal(t, model.EventStaked, evts[1].Kind)
	assert.Equal(t, uint64(1), evts[1].PoolID)
	assert.True(t, isZero(f.svc.DeferredRewards(alice, 0, 0)))
}

func TestStake_RefundsWhenDeferredPayoutFails(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 2000)
	f.stake(alice, 0, 1000)

	f.clock.Advance(10 * day)
	_, deferred, err := f.svc.WithdrawRewards(f.ctx, alice, 0, 0)
	require.NoError(t, err)

	f.seedFund(1000)
	f.sink.reset()
	f.ledger.FailNext(token.OpTransfer, errors.New("ledger down"))
	_, _, err = f.svc.Stake(f.ctx, alice, 0, tokens(100))
	assert.ErrorIs(t, err, ErrTokenLedger)

	assert.Equal(t, uint64(1), f.svc.SlotCount(alice, 0))
	assert.Equal(t, dec(tokens(1000)), dec(f.balance(alice)))
	assert.Equal(t, dec(deferred), dec(f.svc.DeferredRewards(alice, 0, 0)))
	assert.Equal(t, dec(tokens(1000)), dec(f.svc.RewardFund()))
	assert.Empty(t, f.sink.kinds())
}

func TestCompound_RestakesOwedRewards(t *testing.T) {
	f := newFixture(t)
	f.seedFund(1000)
	f.give(alice, 1000)
	f.stake(alice, 0, 1000)

	f.clock.Advance(10 * day)
	owed, err := f.svc.PendingRewards(alice, 0, 0)
	require.NoError(t, err)

	f.sink.reset()
	slot, amount, err := f.svc.Compound(f.ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), slot)
	assert.Equal(t, dec(owed), dec(amount))

	dep, err := f.svc.Deposit(alice, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, dec(owed), dec(dep.Amount))
	assert.Equal(t, genesis.Add(10*day), dep.StartTime)

	var staked, fund uint256.Int
	principal, seeded := tokens(1000), tokens(1000)
	staked.Add(&principal, &owed)
	fund.Sub(&seeded, &owed)
	assert.Equal(t, dec(staked), dec(f.svc.TotalStaked()))
	assert.Equal(t, dec(fund), dec(f.svc.RewardFund()))
	assert.Equal(t, dec(owed), dec(f.svc.LifetimeEarnings(alice)))
	assert.Equal(t, []model.EventKind{model.EventRewardsCompounded, model.EventStaked}, f.sink.kinds())

	// no tokens moved
	assert.True(t, isZero(f.balance(alice)))
	assert.Equal(t, dec(tokens(2000)), dec(f.balance(contract)))

	after, err := f.svc.PendingRewards(alice, 0, 0)
	require.NoError(t, err)
	assert.True(t, after.IsZero())
}

func TestCompound_Failures(t *testing.T) {
	f := newFixture(t)
	f.give(alice, 1000)
	f.stake(alice, 0, 500)
	f.stake(alice, 1, 500)

	_, _, err := f.svc.Compound(f.ctx, alice, 0, 0)
	assert.ErrorIs(t, err, ErrNothingToWithdraw)

	f.clock.Advance(31 * day)
	_, _, err = f.svc.Compound(f.ctx, alice, 0, 0)
	assert.ErrorIs(t, err, ErrFundInsufficient)

	f.seedFund(1000)
	_, _, err = f.svc.Compound(f.ctx, alice, 1, 0)
	assert.ErrorIs(t, err, ErrWindowClosed)

	assert.Equal(t, uint64(1), f.svc.SlotCount(alice, 0))
	assert.Equal(t, uint64(1), f.svc.SlotCount(alice, 1))
	assert.Equal(t, dec(tokens(1000)), dec(f.svc.RewardFund()))
}
