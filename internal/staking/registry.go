package staking

import (
	"fmt"

	"LovelyStaking/internal/model"

	"github.com/holiman/uint256"
)

const (
	secondsPerDay = 86400
	flexibleDays  = 365 // accrual period for the flexible pool
	basisPoints   = 10000
)

// RewardScale is the fixed-point scale of Pool.RatePerSec.
var RewardScale = uint256.NewInt(1e16)

// Registry is the set of pools fixed at construction.
type Registry struct {
	pools []model.Pool
}

// NewRegistry builds pools from parallel arrays of durations (days) and APYs
// (basis points). Pool 0 is the flexible pool and must have a zero duration.
func NewRegistry(durationsDays, apys []uint64) (*Registry, error) {
	if len(durationsDays) != len(apys) {
		return nil, fmt.Errorf("%w: %d durations, %d apys", ErrPoolConfigMismatch, len(durationsDays), len(apys))
	}
	if len(durationsDays) == 0 {
		return nil, fmt.Errorf("%w: no pools", ErrInvalidPool)
	}

	pools := make([]model.Pool, len(durationsDays))
	for i, days := range durationsDays {
		id := uint64(i)
		switch {
		case id == model.FlexiblePoolID && days != 0:
			return nil, fmt.Errorf("%w: flexible pool 0 has duration %d days", ErrInvalidPool, days)
		case id != model.FlexiblePoolID && days == 0:
			return nil, fmt.Errorf("%w: pool %d has zero duration", ErrInvalidPool, id)
		case days > model.MaxDurationDays:
			return nil, fmt.Errorf("pool %d lasts %d days: %w", id, days, ErrDurationTooLong)
		}
		pools[i] = model.Pool{
			ID:           id,
			DurationDays: days,
			APY:          apys[i],
			RatePerSec:   ratePerSecond(apys[i], days),
		}
	}
	return &Registry{pools: pools}, nil
}

// ratePerSecond spreads apy over the pool's period, or a year for the flexible pool.
func ratePerSecond(apy, days uint64) uint256.Int {
	if days == 0 {
		days = flexibleDays
	}
	var rate, den uint256.Int
	rate.Mul(uint256.NewInt(apy), RewardScale)
	den.Mul(uint256.NewInt(days*secondsPerDay), uint256.NewInt(basisPoints))
	rate.Div(&rate, &den)
	return rate
}

// Len returns the number of pools.
func (r *Registry) Len() int { return len(r.pools) }

func (r *Registry) pool(id uint64) (*model.Pool, error) {
	if id >= uint64(len(r.pools)) {
		return nil, fmt.Errorf("pool %d: %w", id, ErrUnknownPool)
	}
	return &r.pools[id], nil
}

// Pools returns a copy of every pool.
func (r *Registry) Pools() []model.Pool {
	out := make([]model.Pool, len(r.pools))
	copy(out, r.pools)
	return out
}
