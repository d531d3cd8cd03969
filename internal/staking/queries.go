package staking

import (
	"fmt"

	"LovelyStaking/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PendingRewards returns what one slot is owed right now, deferred balance included.
func (s *Service) PendingRewards(account common.Address, poolID, idx uint64) (uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, dep, err := s.slot(account, poolID, idx)
	if err != nil {
		return uint256.Int{}, err
	}
	return s.owed(account, pool, idx, dep, s.clock()), nil
}

// PoolPendingRewards sums PendingRewards over every slot the account has in a pool.
func (s *Service) PoolPendingRewards(account common.Address, poolID uint64) (uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint256.Int
	pool, err := s.registry.pool(poolID)
	if err != nil {
		return total, err
	}
	now := s.clock()
	slots := s.deposits[poolKey{account, poolID}]
	for i := range slots {
		owed := s.owed(account, pool, uint64(i), &slots[i], now)
		total.Add(&total, &owed)
	}
	return total, nil
}

// Pool returns a copy of one pool.
func (s *Service) Pool(id uint64) (model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, err := s.registry.pool(id)
	if err != nil {
		return model.Pool{}, err
	}
	return *pool, nil
}

// Pools returns a copy of every pool.
func (s *Service) Pools() []model.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Pools()
}

func (s *Service) LifetimeEarnings(account common.Address) uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.earnings[account]
}

// Deposits returns a copy of every slot the account has in a pool, closed ones included.
func (s *Service) Deposits(account common.Address, poolID uint64) ([]model.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.registry.pool(poolID); err != nil {
		return nil, err
	}
	slots := s.deposits[poolKey{account, poolID}]
	out := make([]model.Deposit, len(slots))
	copy(out, slots)
	return out, nil
}

func (s *Service) Deposit(account common.Address, poolID, idx uint64) (model.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, dep, err := s.slot(account, poolID, idx)
	if err != nil {
		return model.Deposit{}, err
	}
	return *dep, nil
}

// SlotCount is the number of slots ever opened by the account in a pool.
func (s *Service) SlotCount(account common.Address, poolID uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.deposits[poolKey{account, poolID}]))
}

// DeferredRewards returns the pending balance a slot carries from settlements
// the fund could not cover.
func (s *Service) DeferredRewards(account common.Address, poolID, idx uint64) uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[slotKey{account, poolID, idx}]
}

func (s *Service) RewardFund() uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fund
}

func (s *Service) TotalStaked() uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalStaked
}

func (s *Service) Owner() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Contract is the service's own account on the token ledger.
func (s *Service) Contract() common.Address { return s.contract }

// Summary returns the fund, totals and pools as of now.
func (s *Service) Summary() model.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Summary{
		RewardFund:  s.fund,
		TotalStaked: s.totalStaked,
		Pools:       s.registry.Pools(),
		UpdatedAt:   s.clock(),
	}
}

func (s *Service) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("staking(contract=%s pools=%d fund=%s staked=%s)",
		s.contract.Hex(), s.registry.Len(), s.fund.Dec(), s.totalStaked.Dec())
}
