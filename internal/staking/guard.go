package staking

import (
	"context"
	"sync"

	"LovelyStaking/internal/model"
	"LovelyStaking/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// exec runs fn as the one mutation in flight. Any mutation started while
// another is running fails with ErrReentrant, whatever context it carries;
// callers that share a service across goroutines serialize above it. State is
// persisted and events are published only when fn succeeds, and the service
// stays busy until every sink has seen them.
func (s *Service) exec(ctx context.Context, fn func(ctx context.Context) ([]model.Event, error)) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	defer s.busy.Store(false)

	events, err := func() ([]model.Event, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		events, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.save(); err != nil {
			s.log.Error("failed to save ledger state", zap.Error(err))
		}
		return events, nil
	}()
	if err != nil {
		return err
	}

	s.publish(events)
	return nil
}

// unlocked forwards to the token ledger with the state lock released, so
// queries issued from ledger callbacks read committed state instead of
// waiting on the mutation that called out. The busy flag keeps other
// mutations out for the duration.
type unlocked struct {
	ledger token.Ledger
	mu     *sync.RWMutex
}

func (u unlocked) BalanceOf(ctx context.Context, account common.Address) (uint256.Int, error) {
	u.mu.Unlock()
	defer u.mu.Lock()
	return u.ledger.BalanceOf(ctx, account)
}

func (u unlocked) Allowance(ctx context.Context, owner, spender common.Address) (uint256.Int, error) {
	u.mu.Unlock()
	defer u.mu.Lock()
	return u.ledger.Allowance(ctx, owner, spender)
}

func (u unlocked) Transfer(ctx context.Context, from, to common.Address, amount uint256.Int) error {
	u.mu.Unlock()
	defer u.mu.Lock()
	return u.ledger.Transfer(ctx, from, to, amount)
}

func (u unlocked) TransferFrom(ctx context.Context, spender, from, to common.Address, amount uint256.Int) error {
	u.mu.Unlock()
	defer u.mu.Lock()
	return u.ledger.TransferFrom(ctx, spender, from, to, amount)
}

// EventSink receives events after the mutation that produced them commits,
// in commit order. Sinks may query the service but not mutate it.
type EventSink interface {
	HandleEvent(evt *model.Event) error
}

func (s *Service) publish(events []model.Event) {
	for i := range events {
		evt := &events[i]
		for _, sink := range s.sinks {
			if err := sink.HandleEvent(evt); err != nil {
				s.log.Warn("event sink failed",
					zap.String("kind", string(evt.Kind)),
					zap.String("account", evt.Account.Hex()),
					zap.Error(err))
			}
		}
	}
}
