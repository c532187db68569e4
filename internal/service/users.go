package service

import (
	"context"
	"fmt"

	"points_bot/internal/model"
	"points_bot/internal/repository"
	"points_bot/pkg/logger"

	"go.uber.org/zap"
)

type UserService struct {
	ledger Ledger
	now    Clock
}

func NewUserService(ledger Ledger, now Clock) *UserService {
	return &UserService{
		ledger: ledger,
		now:    now,
	}
}

// Enter returns the record of telegramID, creating it with default values on
// first contact. created reports whether the record is new.
func (s *UserService) Enter(ctx context.Context, telegramID int64, displayName string) (*model.User, bool, error) {
	var (
		user    *model.User
		created bool
	)

	err := s.ledger.Update(ctx, func(tx *repository.Tx) error {
		u, err := tx.Get(telegramID)
		if err == nil {
			if displayName != "" && u.DisplayName != displayName && !u.Banned {
				u.DisplayName = displayName
				if err := tx.Put(u); err != nil {
					return err
				}
			}
			user = u
			return nil
		}

		u, err = tx.Create(telegramID, displayName, s.now())
		if err != nil {
			return err
		}
		user, created = u, true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to enter user: %w", err)
	}

	if created {
		logger.Logger().Info("user registered", zap.Int64("telegram_id", telegramID))
	}

	return user, created, nil
}

func (s *UserService) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	var user *model.User
	err := s.ledger.View(ctx, func(tx *repository.Tx) error {
		u, err := lookupUser(tx, telegramID)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram ID: %w", err)
	}
	return user, nil
}

func (s *UserService) Balance(ctx context.Context, telegramID int64) (model.Balance, error) {
	user, err := s.GetUser(ctx, telegramID)
	if err != nil {
		return model.Balance{}, err
	}
	return model.Balance{
		Points:         user.Points,
		Referrals:      user.Referrals,
		RewardsClaimed: user.RewardsClaimed,
	}, nil
}
