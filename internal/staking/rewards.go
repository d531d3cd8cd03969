package staking

import (
	"context"
	"fmt"
	"time"

	"LovelyStaking/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// accrued returns what dep has earned since it was last settled. A fixed pool
// stops accruing at maturity; the flexible pool accrues up to now.
// Results saturate at 2^256-1.
func accrued(pool *model.Pool, dep *model.Deposit, now time.Time) uint256.Int {
	var out uint256.Int
	if !dep.Open() {
		return out
	}
	end := now
	if !pool.Flexible() && !dep.EndTime.After(now) {
		end = dep.EndTime
	}
	if !end.After(dep.LastSettledTime) {
		return out
	}

	elapsed := uint64(end.Sub(dep.LastSettledTime) / time.Second)
	var weighted uint256.Int
	if _, overflow := weighted.MulOverflow(&dep.Amount, uint256.NewInt(elapsed)); overflow {
		return *out.SetAllOne()
	}
	if _, overflow := out.MulDivOverflow(&weighted, &pool.RatePerSec, RewardScale); overflow {
		return *out.SetAllOne()
	}
	return out
}

// owed is the slot's deferred balance plus its fresh accrual.
func (s *Service) owed(account common.Address, pool *model.Pool, idx uint64, dep *model.Deposit, now time.Time) uint256.Int {
	out := accrued(pool, dep, now)
	if p, ok := s.pending[slotKey{account, pool.ID, idx}]; ok {
		if _, overflow := out.AddOverflow(&out, &p); overflow {
			out.SetAllOne()
		}
	}
	return out
}

type settlement struct {
	owed     uint256.Int
	paid     uint256.Int
	deferred uint256.Int
	events   []model.Event
}

// settle pays what a slot is owed, sending principal along in the same
// transfer. When the fund or the contract balance cannot cover the rewards,
// the whole owed amount becomes the slot's pending balance instead. Either
// way the slot's accrual clock moves to now. Unless forced, owing nothing is
// an error.
func (s *Service) settle(ctx context.Context, account common.Address, pool *model.Pool, idx uint64, dep *model.Deposit,
	forced bool, principal uint256.Int, now time.Time) (settlement, error) {
	res := settlement{owed: s.owed(account, pool, idx, dep, now)}
	if !forced && res.owed.IsZero() {
		return res, fmt.Errorf("pool %d slot %d: %w", pool.ID, idx, ErrNothingToWithdraw)
	}

	out := principal
	payable := !res.owed.IsZero() && !s.fund.Lt(&res.owed)
	if payable {
		bal, err := s.ledger.BalanceOf(ctx, s.contract)
		if err != nil {
			return res, fmt.Errorf("contract balance: %w: %w", ErrTokenLedger, err)
		}
		var need uint256.Int
		need.Add(&principal, &res.owed)
		if bal.Lt(&need) {
			payable = false
		} else {
			out = need
		}
	}

	if !out.IsZero() {
		if err := s.ledger.Transfer(ctx, s.contract, account, out); err != nil {
			return res, fmt.Errorf("transfer to %s: %w: %w", account.Hex(), ErrTokenLedger, err)
		}
	}

	key := slotKey{account, pool.ID, idx}
	switch {
	case payable:
		delete(s.pending, key)
		dep.TotalRewardsPaid.Add(&dep.TotalRewardsPaid, &res.owed)
		s.credit(account, &res.owed)
		s.fund.Sub(&s.fund, &res.owed)
		res.paid = res.owed
		res.events = append(res.events, model.Event{
			Kind:      model.EventRewardsWithdrawn,
			Account:   account,
			PoolID:    pool.ID,
			Slot:      idx,
			Amount:    res.owed,
			Timestamp: now,
		})
	case !res.owed.IsZero():
		s.pending[key] = res.owed
		res.deferred = res.owed
		res.events = append(res.events, model.Event{
			Kind:      model.EventRewardsDeferred,
			Account:   account,
			PoolID:    pool.ID,
			Slot:      idx,
			Amount:    res.owed,
			Timestamp: now,
		})
		s.log.Warn("reward fund short, rewards deferred",
			zap.String("account", account.Hex()),
			zap.Uint64("pool", pool.ID),
			zap.Uint64("slot", idx),
			zap.String("owed", res.owed.Dec()),
			zap.String("fund", s.fund.Dec()))
	}
	dep.LastSettledTime = now
	return res, nil
}

// payDeferred pays out the account's pending balances, slot by slot in pool
// and slot order, for as long as the fund covers them. Accrual clocks are
// left alone. Balances the fund cannot cover stay pending.
func (s *Service) payDeferred(ctx context.Context, account common.Address, now time.Time) ([]model.Event, error) {
	type due struct {
		key    slotKey
		dep    *model.Deposit
		amount uint256.Int
	}
	var (
		total uint256.Int
		dues  []due
	)
	for pid := uint64(0); pid < uint64(s.registry.Len()); pid++ {
		slots := s.deposits[poolKey{account, pid}]
		for i := range slots {
			key := slotKey{account, pid, uint64(i)}
			amount, ok := s.pending[key]
			if !ok || amount.IsZero() {
				continue
			}
			var next uint256.Int
			next.Add(&total, &amount)
			if s.fund.Lt(&next) {
				continue
			}
			total = next
			dues = append(dues, due{key: key, dep: &slots[i], amount: amount})
		}
	}
	if len(dues) == 0 {
		return nil, nil
	}

	bal, err := s.ledger.BalanceOf(ctx, s.contract)
	if err != nil {
		return nil, fmt.Errorf("contract balance: %w: %w", ErrTokenLedger, err)
	}
	if bal.Lt(&total) {
		return nil, nil
	}
	if err := s.ledger.Transfer(ctx, s.contract, account, total); err != nil {
		return nil, fmt.Errorf("pay deferred rewards to %s: %w: %w", account.Hex(), ErrTokenLedger, err)
	}

	events := make([]model.Event, 0, len(dues))
	for _, d := range dues {
		delete(s.pending, d.key)
		d.dep.TotalRewardsPaid.Add(&d.dep.TotalRewardsPaid, &d.amount)
		s.credit(account, &d.amount)
		s.fund.Sub(&s.fund, &d.amount)
		events = append(events, model.Event{
			Kind:      model.EventRewardsWithdrawn,
			Account:   account,
			PoolID:    d.key.pool,
			Slot:      d.key.slot,
			Amount:    d.amount,
			Timestamp: now,
		})
	}
	return events, nil
}

// WithdrawRewards settles one slot. It returns what was paid, or what was
// deferred when the fund could not cover it.
func (s *Service) WithdrawRewards(ctx context.Context, account common.Address, poolID, idx uint64) (paid, deferred uint256.Int, err error) {
	err = s.exec(ctx, func(ctx context.Context) ([]model.Event, error) {
		pool, dep, err := s.slot(account, poolID, idx)
		if err != nil {
			return nil, err
		}
		res, err := s.settle(ctx, account, pool, idx, dep, false, uint256.Int{}, s.clock())
		if err != nil {
			return nil, err
		}
		paid, deferred = res.paid, res.deferred
		return res.events, nil
	})
	if err != nil {
		return uint256.Int{}, uint256.Int{}, fmt.Errorf("withdraw rewards: %w", err)
	}
	return paid, deferred, nil
}

// Compound restakes what a slot is owed as a new slot in the same pool. The
// tokens never leave the contract; they move from the reward fund into stake.
func (s *Service) Compound(ctx context.Context, account common.Address, poolID, idx uint64) (newSlot uint64, amount uint256.Int, err error) {
	err = s.exec(ctx, func(ctx context.Context) ([]model.Event, error) {
		now := s.clock()
		pool, dep, err := s.slot(account, poolID, idx)
		if err != nil {
			return nil, err
		}
		amount = s.owed(account, pool, idx, dep, now)
		if amount.IsZero() {
			return nil, fmt.Errorf("pool %d slot %d: %w", poolID, idx, ErrNothingToWithdraw)
		}
		if s.fund.Lt(&amount) {
			return nil, fmt.Errorf("owed %s, fund holds %s: %w", amount.Dec(), s.fund.Dec(), ErrFundInsufficient)
		}
		if err := s.checkDepositable(pool, &amount, now); err != nil {
			return nil, err
		}

		// dep points into the slot slice; finish with it before openSlot appends
		delete(s.pending, slotKey{account, poolID, idx})
		dep.TotalRewardsPaid.Add(&dep.TotalRewardsPaid, &amount)
		dep.LastSettledTime = now
		s.credit(account, &amount)
		s.fund.Sub(&s.fund, &amount)
		newSlot = s.openSlot(account, pool, amount, now)

		return []model.Event{
			{Kind: model.EventRewardsCompounded, Account: account, PoolID: poolID, Slot: idx, Amount: amount, Timestamp: now},
			{Kind: model.EventStaked, Account: account, PoolID: poolID, Slot: newSlot, Amount: amount, Timestamp: now},
		}, nil
	})
	if err != nil {
		return 0, uint256.Int{}, fmt.Errorf("compound: %w", err)
	}
	return newSlot, amount, nil
}
