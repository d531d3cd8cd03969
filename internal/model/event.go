package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventKind indicates which ledger operation produced an event.
type EventKind string

const (
	EventStaked               EventKind = "STAKED"
	EventUnstaked             EventKind = "UNSTAKED"
	EventRewardsWithdrawn     EventKind = "REWARDS_WITHDRAWN"
	EventRewardsDeferred      EventKind = "REWARDS_DEFERRED"
	EventRewardsCompounded    EventKind = "REWARDS_COMPOUNDED"
	EventFundReplenished      EventKind = "FUND_REPLENISHED"
	EventFundRescued          EventKind = "FUND_RESCUED"
	EventOwnershipTransferred EventKind = "OWNERSHIP_TRANSFERRED"
)

// Event is emitted after a ledger mutation commits.
type Event struct {
	Kind      EventKind
	Account   common.Address
	PoolID    uint64
	Slot      uint64
	Amount    uint256.Int
	Timestamp time.Time
}
