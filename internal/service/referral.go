package service

import (
	"context"
	"errors"
	"fmt"

	"points_bot/internal/model"
	"points_bot/internal/repository"
	"points_bot/pkg/logger"

	"go.uber.org/zap"
)

type ReferralService struct {
	ledger        Ledger
	notifier      Notifier
	referredBonus int
	referrerBonus int
}

func NewReferralService(ledger Ledger, notifier Notifier, referredBonus, referrerBonus int) *ReferralService {
	return &ReferralService{
		ledger:        ledger,
		notifier:      notifier,
		referredBonus: referredBonus,
		referrerBonus: referrerBonus,
	}
}

// Apply runs one referral click of referredID naming referrerID. The first
// click registers the referrer, a second click naming the same referrer
// confirms and credits both users. Self-referrals, unknown referrers,
// repeated confirmations and clicks naming a different referrer while
// pending are ignored.
func (s *ReferralService) Apply(ctx context.Context, referredID, referrerID int64) (model.Outcome, error) {
	if referredID == referrerID {
		return model.Ignored{}, nil
	}

	var (
		outcome model.Outcome = model.Ignored{}
		credit  *model.ReferralCredited
	)

	err := s.ledger.Update(ctx, func(tx *repository.Tx) error {
		referrer, err := tx.Get(referrerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}

		referred, err := lookupUser(tx, referredID)
		if err != nil {
			return err
		}

		protocol := twoPhase{
			matches: func() bool {
				return referred.ReferrerID != nil && *referred.ReferrerID == referrerID
			},
			award: func() {
				referred.Points += s.referredBonus
				referrer.Points += s.referrerBonus
				referrer.Referrals++
			},
		}

		switch protocol.advance(&referred.ReferralPhase) {
		case stepRegistered:
			id := referrerID
			referred.ReferrerID = &id
			if err := tx.Put(referred); err != nil {
				return err
			}
			outcome = model.ReferralRegistered{ReferrerID: referrerID}

		case stepConfirmed:
			if err := tx.Put(referred); err != nil {
				return err
			}
			if err := tx.Put(referrer); err != nil {
				return err
			}
			outcome = model.ReferralConfirmed{
				ReferrerID:   referrerID,
				ReferrerName: referrer.DisplayName,
				Awarded:      s.referredBonus,
				Balance:      referred.Points,
			}
			credit = &model.ReferralCredited{
				ReferredName: referred.DisplayName,
				Awarded:      s.referrerBonus,
				Referrals:    referrer.Referrals,
				Balance:      referrer.Points,
			}

		case stepMismatch:
			logger.Logger().Info("referral confirmation with a different referrer ignored",
				zap.Int64("telegram_id", referredID),
				zap.Int64p("pending_referrer_id", referred.ReferrerID),
				zap.Int64("referrer_id", referrerID))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply referral: %w", err)
	}

	if credit != nil {
		logger.Logger().Info("referral confirmed",
			zap.Int64("telegram_id", referredID),
			zap.Int64("referrer_id", referrerID))
		notify(ctx, s.notifier, referrerID, *credit)
	}

	return outcome, nil
}
