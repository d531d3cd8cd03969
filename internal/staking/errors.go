package staking

import "errors"

// Validation errors. Operations that return them leave the ledger unchanged.
var (
	ErrZeroAmount            = errors.New("amount must be positive")
	ErrUnknownPool           = errors.New("unknown pool")
	ErrUnknownSlot           = errors.New("unknown deposit slot")
	ErrWindowClosed          = errors.New("deposit window closed")
	ErrPoolCapExceeded       = errors.New("pool capacity exceeded")
	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient token allowance")
	ErrStillLocked           = errors.New("deposit still locked")
	ErrSlotClosed            = errors.New("deposit slot closed")
	ErrNothingToWithdraw     = errors.New("nothing to withdraw")
	ErrFundInsufficient      = errors.New("reward fund insufficient")
	ErrZeroReceived          = errors.New("no tokens received")
	ErrZeroAddress           = errors.New("zero address")
)

var (
	ErrUnauthorized = errors.New("caller is not the owner")
	ErrReentrant    = errors.New("reentrant call: another operation is in flight")
	ErrTokenLedger  = errors.New("token ledger call failed")
)

// Construction errors.
var (
	ErrPoolConfigMismatch = errors.New("pool durations and apys differ in length")
	ErrInvalidPool        = errors.New("invalid pool configuration")
	ErrDurationTooLong    = errors.New("duration exceeds the longest supported period")
)
