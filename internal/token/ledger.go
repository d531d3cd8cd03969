package token

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("transfer amount exceeds allowance")
)

// Ledger is the fungible-token ledger the staking contract holds its tokens on.
// Every call may fail.
type Ledger interface {
	BalanceOf(ctx context.Context, account common.Address) (uint256.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (uint256.Int, error)
	// Transfer moves amount out of from, which is always the caller's own account.
	Transfer(ctx context.Context, from, to common.Address, amount uint256.Int) error
	// TransferFrom moves amount from one account to another using spender's allowance.
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount uint256.Int) error
}
