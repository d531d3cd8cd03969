package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Op names a ledger call for hooks and failure injection.
type Op string

const (
	OpBalanceOf    Op = "balanceOf"
	OpAllowance    Op = "allowance"
	OpTransfer     Op = "transfer"
	OpTransferFrom Op = "transferFrom"
)

// Hook runs before a transfer is applied. A non-nil error fails the transfer.
type Hook func(ctx context.Context, op Op, from, to common.Address, amount uint256.Int) error

// MemoryLedger is an in-process token ledger for development and testing.
// It can charge a fee on every transfer, run hooks before transfers and fail
// the next call of a given kind.
type MemoryLedger struct {
	mu         sync.Mutex
	balances   map[common.Address]uint256.Int
	allowances map[common.Address]map[common.Address]uint256.Int
	supply     uint256.Int
	feeBps     uint64
	hooks      []Hook
	failures   map[Op]error
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:   make(map[common.Address]uint256.Int),
		allowances: make(map[common.Address]map[common.Address]uint256.Int),
		failures:   make(map[Op]error),
	}
}

// Mint credits amount to account.
func (l *MemoryLedger) Mint(account common.Address, amount uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balances[account]
	bal.Add(&bal, &amount)
	l.balances[account] = bal
	l.supply.Add(&l.supply, &amount)
}

// Approve sets the allowance spender may move out of owner's account.
func (l *MemoryLedger) Approve(owner, spender common.Address, amount uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[common.Address]uint256.Int)
	}
	l.allowances[owner][spender] = amount
}

// SetTransferFee burns bps/10000 of every transferred amount.
func (l *MemoryLedger) SetTransferFee(bps uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feeBps = bps
}

// AddHook registers a hook run before every transfer.
func (l *MemoryLedger) AddHook(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

// FailNext makes the next call of op return err.
func (l *MemoryLedger) FailNext(op Op, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[op] = err
}

// TotalSupply returns minted minus burned tokens.
func (l *MemoryLedger) TotalSupply() uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply
}

func (l *MemoryLedger) BalanceOf(_ context.Context, account common.Address) (uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected(OpBalanceOf); err != nil {
		return uint256.Int{}, err
	}
	return l.balances[account], nil
}

func (l *MemoryLedger) Allowance(_ context.Context, owner, spender common.Address) (uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected(OpAllowance); err != nil {
		return uint256.Int{}, err
	}
	return l.allowances[owner][spender], nil
}

func (l *MemoryLedger) Transfer(ctx context.Context, from, to common.Address, amount uint256.Int) error {
	if err := l.runHooks(ctx, OpTransfer, from, to, amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected(OpTransfer); err != nil {
		return err
	}
	return l.move(from, to, amount)
}

func (l *MemoryLedger) TransferFrom(ctx context.Context, spender, from, to common.Address, amount uint256.Int) error {
	if err := l.runHooks(ctx, OpTransferFrom, from, to, amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected(OpTransferFrom); err != nil {
		return err
	}
	allowed := l.allowances[from][spender]
	if allowed.Lt(&amount) {
		return fmt.Errorf("%s: %w", from.Hex(), ErrInsufficientAllowance)
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	if l.allowances[from] == nil {
		l.allowances[from] = make(map[common.Address]uint256.Int)
	}
	allowed.Sub(&allowed, &amount)
	l.allowances[from][spender] = allowed
	return nil
}

// runHooks is called without the lock so hooks may read the ledger.
func (l *MemoryLedger) runHooks(ctx context.Context, op Op, from, to common.Address, amount uint256.Int) error {
	l.mu.Lock()
	hooks := append([]Hook(nil), l.hooks...)
	l.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx, op, from, to, amount); err != nil {
			return fmt.Errorf("%s hook: %w", op, err)
		}
	}
	return nil
}

func (l *MemoryLedger) injected(op Op) error {
	err, ok := l.failures[op]
	if !ok {
		return nil
	}
	delete(l.failures, op)
	return err
}

func (l *MemoryLedger) move(from, to common.Address, amount uint256.Int) error {
	src := l.balances[from]
	if src.Lt(&amount) {
		return fmt.Errorf("%s: %w", from.Hex(), ErrInsufficientBalance)
	}
	src.Sub(&src, &amount)
	l.balances[from] = src

	var fee uint256.Int
	if l.feeBps > 0 {
		fee.Mul(&amount, uint256.NewInt(l.feeBps))
		fee.Div(&fee, uint256.NewInt(10000))
		l.supply.Sub(&l.supply, &fee)
	}
	var credited uint256.Int
	credited.Sub(&amount, &fee)
	dst := l.balances[to]
	dst.Add(&dst, &credited)
	l.balances[to] = dst
	return nil
}
