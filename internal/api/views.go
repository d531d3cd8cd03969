package api

import (
	"time"

	"LovelyStaking/internal/model"
)

type poolView struct {
	ID           uint64 `json:"id"`
	DurationDays uint64 `json:"duration_days"`
	APYBps       uint64 `json:"apy_bps"`
	RatePerSec   string `json:"rate_per_sec"`
	TotalStaked  string `json:"total_staked"`
	Flexible     bool   `json:"flexible"`
}

func newPoolView(p *model.Pool) poolView {
	return poolView{
		ID:           p.ID,
		DurationDays: p.DurationDays,
		APYBps:       p.APY,
		RatePerSec:   p.RatePerSec.Dec(),
		TotalStaked:  p.TotalStaked.Dec(),
		Flexible:     p.Flexible(),
	}
}

type summaryView struct {
	RewardFund  string     `json:"reward_fund"`
	TotalStaked string     `json:"total_staked"`
	Owner       string     `json:"owner"`
	Contract    string     `json:"contract"`
	Pools       []poolView `json:"pools"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type depositView struct {
	Slot             uint64    `json:"slot"`
	Open             bool      `json:"open"`
	Amount           string    `json:"amount"`
	StartTime        time.Time `json:"start_time,omitempty"`
	EndTime          time.Time `json:"end_time,omitempty"`
	LastSettledTime  time.Time `json:"last_settled_time"`
	TotalRewardsPaid string    `json:"total_rewards_paid"`
	Pending          string    `json:"pending"`
	Deferred         string    `json:"deferred"`
}

type accountPoolView struct {
	Account      string        `json:"account"`
	Pool         uint64        `json:"pool"`
	TotalPending string        `json:"total_pending"`
	Deposits     []depositView `json:"deposits"`
}

type eventView struct {
	Kind      model.EventKind `json:"kind"`
	Account   string          `json:"account"`
	Pool      uint64          `json:"pool"`
	Slot      uint64          `json:"slot"`
	Amount    string          `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

func newEventView(e *model.Event) eventView {
	return eventView{
		Kind:      e.Kind,
		Account:   e.Account.Hex(),
		Pool:      e.PoolID,
		Slot:      e.Slot,
		Amount:    e.Amount.Dec(),
		Timestamp: e.Timestamp,
	}
}

// request bodies

type stakeRequest struct {
	Account string `json:"account"`
	Pool    uint64 `json:"pool"`
	Amount  string `json:"amount"`
}

type slotRequest struct {
	Account string `json:"account"`
	Pool    uint64 `json:"pool"`
	Slot    uint64 `json:"slot"`
}

type fundRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type rescueRequest struct {
	Amount string `json:"amount"`
}

type ownerRequest struct {
	Owner string `json:"owner"`
}
