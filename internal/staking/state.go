package staking

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"LovelyStaking/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// State is the on-disk form of the ledger. Amounts are base-unit decimal strings.
type State struct {
	LaunchTime time.Time                 `json:"launch_time"`
	Owner      common.Address            `json:"owner"`
	RewardFund string                    `json:"reward_fund"`
	PoolTotals []string                  `json:"pool_totals"`
	Deposits   []DepositState            `json:"deposits"`
	Pending    []PendingState            `json:"pending"`
	Earnings   map[common.Address]string `json:"earnings"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

type DepositState struct {
	Account          common.Address `json:"account"`
	Pool             uint64         `json:"pool"`
	Slot             uint64         `json:"slot"`
	Amount           string         `json:"amount"`
	StartTime        time.Time      `json:"start_time"`
	EndTime          time.Time      `json:"end_time"`
	LastSettledTime  time.Time      `json:"last_settled_time"`
	TotalRewardsPaid string         `json:"total_rewards_paid"`
}

type PendingState struct {
	Account common.Address `json:"account"`
	Pool    uint64         `json:"pool"`
	Slot    uint64         `json:"slot"`
	Amount  string         `json:"amount"`
}

// LoadState reads the ledger state from a JSON file. Returns nil if the file doesn't exist.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveState writes the ledger state to a JSON file. The file is replaced
// atomically, so a crash mid-write leaves the previous state intact.
func SaveState(filePath string, st *State) error {
	st.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}

// snapshot captures the mutable part of the ledger. Callers hold s.mu.
func (s *Service) snapshot() *State {
	st := &State{
		LaunchTime: s.launch,
		Owner:      s.owner,
		RewardFund: s.fund.Dec(),
		Earnings:   make(map[common.Address]string, len(s.earnings)),
	}
	for i := range s.registry.pools {
		st.PoolTotals = append(st.PoolTotals, s.registry.pools[i].TotalStaked.Dec())
	}
	for key, slots := range s.deposits {
		for i := range slots {
			d := &slots[i]
			st.Deposits = append(st.Deposits, DepositState{
				Account:          key.account,
				Pool:             key.pool,
				Slot:             uint64(i),
				Amount:           d.Amount.Dec(),
				StartTime:        d.StartTime,
				EndTime:          d.EndTime,
				LastSettledTime:  d.LastSettledTime,
				TotalRewardsPaid: d.TotalRewardsPaid.Dec(),
			})
		}
	}
	for key, amount := range s.pending {
		st.Pending = append(st.Pending, PendingState{
			Account: key.account,
			Pool:    key.pool,
			Slot:    key.slot,
			Amount:  amount.Dec(),
		})
	}
	for account, amount := range s.earnings {
		st.Earnings[account] = amount.Dec()
	}

	sort.Slice(st.Deposits, func(i, j int) bool {
		a, b := st.Deposits[i], st.Deposits[j]
		return lessSlot(a.Account, a.Pool, a.Slot, b.Account, b.Pool, b.Slot)
	})
	sort.Slice(st.Pending, func(i, j int) bool {
		a, b := st.Pending[i], st.Pending[j]
		return lessSlot(a.Account, a.Pool, a.Slot, b.Account, b.Pool, b.Slot)
	})
	return st
}

func lessSlot(a common.Address, ap, as uint64, b common.Address, bp, bs uint64) bool {
	if c := a.Cmp(b); c != 0 {
		return c < 0
	}
	if ap != bp {
		return ap < bp
	}
	return as < bs
}

// restore loads st into a freshly constructed service. A nil state is a no-op.
func (s *Service) restore(st *State) error {
	if st == nil {
		return nil
	}
	if len(st.PoolTotals) != s.registry.Len() {
		return fmt.Errorf("state has %d pools, configured %d", len(st.PoolTotals), s.registry.Len())
	}

	parse := func(what, v string) (uint256.Int, error) {
		if v == "" {
			return uint256.Int{}, nil
		}
		amount, err := model.ParseAmount(v)
		if err != nil {
			return amount, fmt.Errorf("%s: %w", what, err)
		}
		return amount, nil
	}

	if !st.LaunchTime.IsZero() {
		s.launch = st.LaunchTime
	}
	if st.Owner != (common.Address{}) {
		s.owner = st.Owner
	}
	fund, err := parse("reward fund", st.RewardFund)
	if err != nil {
		return err
	}
	s.fund = fund

	s.totalStaked.Clear()
	for i, v := range st.PoolTotals {
		total, err := parse(fmt.Sprintf("pool %d total", i), v)
		if err != nil {
			return err
		}
		s.registry.pools[i].TotalStaked = total
		s.totalStaked.Add(&s.totalStaked, &total)
	}

	for _, d := range st.Deposits {
		if d.Pool >= uint64(s.registry.Len()) {
			return fmt.Errorf("deposit in pool %d: %w", d.Pool, ErrUnknownPool)
		}
		key := poolKey{d.Account, d.Pool}
		if d.Slot != uint64(len(s.deposits[key])) {
			return fmt.Errorf("deposit %s pool %d: slot %d out of order", d.Account.Hex(), d.Pool, d.Slot)
		}
		amount, err := parse("deposit amount", d.Amount)
		if err != nil {
			return err
		}
		paid, err := parse("deposit rewards paid", d.TotalRewardsPaid)
		if err != nil {
			return err
		}
		s.deposits[key] = append(s.deposits[key], model.Deposit{
			Amount:           amount,
			StartTime:        d.StartTime,
			EndTime:          d.EndTime,
			LastSettledTime:  d.LastSettledTime,
			TotalRewardsPaid: paid,
		})
	}

	for _, p := range st.Pending {
		amount, err := parse("pending rewards", p.Amount)
		if err != nil {
			return err
		}
		s.pending[slotKey{p.Account, p.Pool, p.Slot}] = amount
	}
	for account, v := range st.Earnings {
		amount, err := parse("earnings", v)
		if err != nil {
			return err
		}
		s.earnings[account] = amount
	}
	return nil
}
