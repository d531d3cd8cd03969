package staking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LovelyStaking/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Stake pulls amount from account into a new slot of pool poolID. The slot
// records what the contract actually received, which can be less than amount
// for fee-charging tokens. Deferred rewards the account is owed are paid out
// as part of the same call when the fund allows it.
func (s *Service) Stake(ctx context.Context, account common.Address, poolID uint64, amount uint256.Int) (slot uint64, received uint256.Int, err error) {
	err = s.exec(ctx, func(ctx context.Context) ([]model.Event, error) {
		now := s.clock()
		pool, err := s.registry.pool(poolID)
		if err != nil {
			return nil, err
		}
		if amount.IsZero() {
			return nil, ErrZeroAmount
		}
		if err := s.checkDepositable(pool, &amount, now); err != nil {
			return nil, err
		}

		received, err = s.pull(ctx, account, amount)
		if err != nil {
			return nil, err
		}

		events, err := s.payDeferred(ctx, account, now)
		if err != nil {
			// the principal is already in; hand it back before failing
			if rerr := s.ledger.Transfer(ctx, s.contract, account, received); rerr != nil {
				err = errors.Join(err, fmt.Errorf("refund stake: %w: %w", ErrTokenLedger, rerr))
			}
			return nil, err
		}

		slot = s.openSlot(account, pool, received, now)
		events = append(events, model.Event{
			Kind:      model.EventStaked,
			Account:   account,
			PoolID:    poolID,
			Slot:      slot,
			Amount:    received,
			Timestamp: now,
		})
		s.log.Debug("stake committed",
			zap.String("account", account.Hex()),
			zap.Uint64("pool", poolID),
			zap.Uint64("slot", slot),
			zap.String("amount", received.Dec()))
		return events, nil
	})
	if err != nil {
		return 0, uint256.Int{}, fmt.Errorf("stake: %w", err)
	}
	return slot, received, nil
}

// Unstake returns a matured slot's principal together with its settled
// rewards and closes the slot. Rewards the fund cannot cover are deferred
// to the slot's pending balance; the principal is always returned.
func (s *Service) Unstake(ctx context.Context, account common.Address, poolID, idx uint64) (principal, rewards uint256.Int, err error) {
	err = s.exec(ctx, func(ctx context.Context) ([]model.Event, error) {
		now := s.clock()
		pool, dep, err := s.slot(account, poolID, idx)
		if err != nil {
			return nil, err
		}
		if !dep.Open() {
			return nil, fmt.Errorf("pool %d slot %d: %w", poolID, idx, ErrSlotClosed)
		}
		if !pool.Flexible() && now.Before(dep.EndTime) {
			return nil, fmt.Errorf("pool %d slot %d unlocks at %s: %w",
				poolID, idx, dep.EndTime.UTC().Format(time.RFC3339), ErrStillLocked)
		}

		principal = dep.Amount
		res, err := s.settle(ctx, account, pool, idx, dep, true, principal, now)
		if err != nil {
			return nil, err
		}
		rewards = res.paid

		dep.Amount.Clear()
		dep.StartTime = time.Time{}
		pool.TotalStaked.Sub(&pool.TotalStaked, &principal)
		s.totalStaked.Sub(&s.totalStaked, &principal)

		events := append(res.events, model.Event{
			Kind:      model.EventUnstaked,
			Account:   account,
			PoolID:    poolID,
			Slot:      idx,
			Amount:    principal,
			Timestamp: now,
		})
		return events, nil
	})
	if err != nil {
		return uint256.Int{}, uint256.Int{}, fmt.Errorf("unstake: %w", err)
	}
	return principal, rewards, nil
}

// checkDepositable applies the deposit window and pool cap. The flexible
// pool is exempt from both.
func (s *Service) checkDepositable(pool *model.Pool, amount *uint256.Int, now time.Time) error {
	if pool.Flexible() {
		return nil
	}
	if now.After(s.deadline) {
		return fmt.Errorf("pool %d closed at %s: %w", pool.ID, s.deadline.UTC().Format(time.RFC3339), ErrWindowClosed)
	}
	var after uint256.Int
	if _, overflow := after.AddOverflow(&pool.TotalStaked, amount); overflow || after.Gt(&s.capacity) {
		return fmt.Errorf("pool %d holds %s of %s: %w", pool.ID, pool.TotalStaked.Dec(), s.capacity.Dec(), ErrPoolCapExceeded)
	}
	return nil
}

// pull moves amount from account to the contract and returns the change in
// the contract's balance.
func (s *Service) pull(ctx context.Context, account common.Address, amount uint256.Int) (uint256.Int, error) {
	var received uint256.Int

	bal, err := s.ledger.BalanceOf(ctx, account)
	if err != nil {
		return received, fmt.Errorf("balance of %s: %w: %w", account.Hex(), ErrTokenLedger, err)
	}
	if bal.Lt(&amount) {
		return received, fmt.Errorf("%s has %s: %w", account.Hex(), bal.Dec(), ErrInsufficientBalance)
	}
	allowed, err := s.ledger.Allowance(ctx, account, s.contract)
	if err != nil {
		return received, fmt.Errorf("allowance of %s: %w: %w", account.Hex(), ErrTokenLedger, err)
	}
	if allowed.Lt(&amount) {
		return received, fmt.Errorf("%s allows %s: %w", account.Hex(), allowed.Dec(), ErrInsufficientAllowance)
	}

	before, err := s.ledger.BalanceOf(ctx, s.contract)
	if err != nil {
		return received, fmt.Errorf("contract balance: %w: %w", ErrTokenLedger, err)
	}
	if err := s.ledger.TransferFrom(ctx, s.contract, account, s.contract, amount); err != nil {
		return received, fmt.Errorf("transfer from %s: %w: %w", account.Hex(), ErrTokenLedger, err)
	}
	after, err := s.ledger.BalanceOf(ctx, s.contract)
	if err != nil {
		return received, fmt.Errorf("contract balance: %w: %w", ErrTokenLedger, err)
	}

	if after.Cmp(&before) <= 0 {
		return received, ErrZeroReceived
	}
	received.Sub(&after, &before)
	return received, nil
}

// openSlot appends a deposit and returns its index.
func (s *Service) openSlot(account common.Address, pool *model.Pool, amount uint256.Int, now time.Time) uint64 {
	key := poolKey{account, pool.ID}
	s.deposits[key] = append(s.deposits[key], model.Deposit{
		Amount:          amount,
		StartTime:       now,
		EndTime:         now.Add(pool.Duration()),
		LastSettledTime: now,
	})
	pool.TotalStaked.Add(&pool.TotalStaked, &amount)
	s.totalStaked.Add(&s.totalStaked, &amount)
	return uint64(len(s.deposits[key]) - 1)
}
