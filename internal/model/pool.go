package model

import (
	"time"

	"github.com/holiman/uint256"
)

// FlexiblePoolID is the always-unlocked pool.
const FlexiblePoolID uint64 = 0

// MaxDurationDays bounds lock periods and deposit windows so they fit a time.Duration.
const MaxDurationDays uint64 = 100 * 365

// Pool is a staking program with a fixed lock duration and APY.
type Pool struct {
	ID           uint64
	DurationDays uint64
	APY          uint64      // basis points, 350 = 3.5%
	RatePerSec   uint256.Int // reward per second per token, scaled by 1e16
	TotalStaked  uint256.Int
}

// Duration returns the lock period. Zero for the flexible pool.
func (p *Pool) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// Flexible reports whether the pool has no lock.
func (p *Pool) Flexible() bool {
	return p.ID == FlexiblePoolID
}

// Deposit is one slot within an (account, pool) pair.
type Deposit struct {
	Amount           uint256.Int
	StartTime        time.Time
	EndTime          time.Time
	LastSettledTime  time.Time
	TotalRewardsPaid uint256.Int
}

// Open reports whether the slot still holds principal.
func (d *Deposit) Open() bool {
	return !d.Amount.IsZero()
}

// Summary is a point-in-time view of the ledger totals.
type Summary struct {
	RewardFund  uint256.Int
	TotalStaked uint256.Int
	Pools       []Pool
	UpdatedAt   time.Time
}
