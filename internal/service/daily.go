package service

import (
	"context"
	"fmt"
	"time"

	"points_bot/internal/model"
	"points_bot/internal/repository"
)

type DailyService struct {
	ledger Ledger
	bonus  int
}

func NewDailyService(ledger Ledger, bonus int) *DailyService {
	return &DailyService{
		ledger: ledger,
		bonus:  bonus,
	}
}

// Claim grants the daily bonus once per UTC calendar day. Eligibility compares
// calendar dates, not elapsed time.
func (s *DailyService) Claim(ctx context.Context, telegramID int64, today time.Time) (model.Outcome, error) {
	day := today.UTC().Format(model.DateLayout)

	var outcome model.Outcome
	err := s.ledger.Update(ctx, func(tx *repository.Tx) error {
		user, err := lookupUser(tx, telegramID)
		if err != nil {
			return err
		}

		if user.LastDailyClaim == day {
			outcome = model.DailyAlreadyClaimed{NextEligible: NextEligible(today)}
			return nil
		}

		user.Points += s.bonus
		user.LastDailyClaim = day
		if err := tx.Put(user); err != nil {
			return err
		}

		outcome = model.DailyGranted{
			Awarded: s.bonus,
			Balance: user.Points,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim daily reward: %w", err)
	}

	return outcome, nil
}

// NextEligible returns the start of the UTC day after today.
func NextEligible(today time.Time) time.Time {
	y, m, d := today.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
