package staking

import (
	"context"
	"fmt"

	"LovelyStaking/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// FundRewards adds to the reward fund. Anyone may call it. The fund grows by
// what the contract actually received.
func (s *Service) FundRewards(ctx context.Context, from common.Address, amount uint256.Int) (received uint256.Int, err error) {
	err = s.exec(ctx, func(ctx context.Context) ([]model.Event, error) {
		if amount.IsZero() {
			return nil, ErrZeroAmount
		}
		received, err = s.pull(ctx, from, amount)
		if err != nil {
			return nil, err
		}
		s.fund.Add(&s.fund, &received)

		s.log.Info("reward fund replenished",
			zap.String("from", from.Hex()),
			zap.String("amount", received.Dec()),
			zap.String("fund", s.fund.Dec()))
		return []model.Event{{
			Kind:      model.EventFundReplenished,
			Account:   from,
			Amount:    received,
			Timestamp: s.clock(),
		}}, nil
	})
	if err != nil {
		return uint256.Int{}, fmt.Errorf("fund rewards: %w", err)
	}
	return received, nil
}

// RescueFund moves amount out of the reward fund to the owner.
func (s *Service) RescueFund(ctx context.Context, caller common.Address, amount uint256.Int) error {
	err := s.exec(ctx, func(ctx context.Context) ([]model.Event, error) {
		if caller != s.owner {
			return nil, fmt.Errorf("%s: %w", caller.Hex(), ErrUnauthorized)
		}
		if amount.IsZero() {
			return nil, ErrZeroAmount
		}
		if s.fund.Lt(&amount) {
			return nil, fmt.Errorf("fund holds %s: %w", s.fund.Dec(), ErrFundInsufficient)
		}
		if err := s.ledger.Transfer(ctx, s.contract, caller, amount); err != nil {
			return nil, fmt.Errorf("transfer to %s: %w: %w", caller.Hex(), ErrTokenLedger, err)
		}
		s.fund.Sub(&s.fund, &amount)

		s.log.Info("reward fund rescued",
			zap.String("to", caller.Hex()),
			zap.String("amount", amount.Dec()),
			zap.String("fund", s.fund.Dec()))
		return []model.Event{{
			Kind:      model.EventFundRescued,
			Account:   caller,
			Amount:    amount,
			Timestamp: s.clock(),
		}}, nil
	})
	if err != nil {
		return fmt.Errorf("rescue fund: %w", err)
	}
	return nil
}

// TransferOwnership hands the owner role to newOwner.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	err := s.exec(ctx, func(context.Context) ([]model.Event, error) {
		if caller != s.owner {
			return nil, fmt.Errorf("%s: %w", caller.Hex(), ErrUnauthorized)
		}
		if newOwner == (common.Address{}) {
			return nil, fmt.Errorf("new owner: %w", ErrZeroAddress)
		}
		s.owner = newOwner

		s.log.Info("ownership transferred",
			zap.String("from", caller.Hex()),
			zap.String("to", newOwner.Hex()))
		return []model.Event{{
			Kind:      model.EventOwnershipTransferred,
			Account:   newOwner,
			Timestamp: s.clock(),
		}}, nil
	})
	if err != nil {
		return fmt.Errorf("transfer ownership: %w", err)
	}
	return nil
}
