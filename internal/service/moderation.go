package service

import (
	"context"
	"fmt"

	"points_bot/internal/model"
	"points_bot/internal/repository"
	"points_bot/pkg/logger"

	"go.uber.org/zap"
)

type ModerationService struct {
	ledger      Ledger
	notifier    Notifier
	moderatorID int64
}

func NewModerationService(ledger Ledger, notifier Notifier, moderatorID int64) *ModerationService {
	return &ModerationService{
		ledger:      ledger,
		notifier:    notifier,
		moderatorID: moderatorID,
	}
}

func (s *ModerationService) ModeratorID() int64 {
	return s.moderatorID
}

// Authorize rejects every caller other than the configured moderator.
func (s *ModerationService) Authorize(caller int64) error {
	if s.moderatorID == 0 || caller != s.moderatorID {
		logger.Logger().Warn("unauthorized moderation attempt", zap.Int64("telegram_id", caller))
		return ErrAccessDenied
	}
	return nil
}

func (s *ModerationService) SetBanned(ctx context.Context, caller, target int64, banned bool) error {
	if err := s.Authorize(caller); err != nil {
		return err
	}

	err := s.ledger.Update(ctx, func(tx *repository.Tx) error {
		user, err := lookupUser(tx, target)
		if err != nil {
			return err
		}
		user.Banned = banned
		return tx.Put(user)
	})
	if err != nil {
		return fmt.Errorf("failed to update ban status: %w", err)
	}

	logger.Logger().Info("ban status updated",
		zap.Int64("telegram_id", target),
		zap.Bool("banned", banned))

	return nil
}

// SetPoints overwrites the balance of target. Any value is accepted, the
// moderator is trusted.
func (s *ModerationService) SetPoints(ctx context.Context, caller, target int64, points int) error {
	if err := s.Authorize(caller); err != nil {
		return err
	}

	err := s.ledger.Update(ctx, func(tx *repository.Tx) error {
		user, err := lookupUser(tx, target)
		if err != nil {
			return err
		}
		user.Points = points
		return tx.Put(user)
	})
	if err != nil {
		return fmt.Errorf("failed to set user points: %w", err)
	}

	logger.Logger().Info("points set by moderator",
		zap.Int64("telegram_id", target),
		zap.Int("points", points))

	return nil
}

func (s *ModerationService) Stats(ctx context.Context, caller int64) (model.Stats, error) {
	if err := s.Authorize(caller); err != nil {
		return model.Stats{}, err
	}

	var stats model.Stats
	err := s.ledger.View(ctx, func(tx *repository.Tx) error {
		for _, u := range tx.Users() {
			stats.TotalUsers++
			stats.TotalPoints += u.Points
			stats.TotalReferrals += u.Referrals
			stats.RewardsClaimed += u.RewardsClaimed
			if u.Banned {
				stats.BannedUsers++
			}
		}
		return nil
	})
	if err != nil {
		return model.Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}

	stats.PersistFailures = s.ledger.Health().PersistFailures

	return stats, nil
}

func (s *ModerationService) ListUsers(ctx context.Context, caller int64) ([]*model.User, error) {
	if err := s.Authorize(caller); err != nil {
		return nil, err
	}

	var users []*model.User
	err := s.ledger.View(ctx, func(tx *repository.Tx) error {
		users = tx.Users()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// Broadcast sends text to every known user. Failed deliveries are counted,
// they never stop the batch.
func (s *ModerationService) Broadcast(ctx context.Context, caller int64, text string) (model.BroadcastReport, error) {
	if err := s.Authorize(caller); err != nil {
		return model.BroadcastReport{}, err
	}

	var recipients []int64
	err := s.ledger.View(ctx, func(tx *repository.Tx) error {
		for _, u := range tx.Users() {
			recipients = append(recipients, u.TelegramID)
		}
		return nil
	})
	if err != nil {
		return model.BroadcastReport{}, fmt.Errorf("failed to collect recipients: %w", err)
	}

	report := model.BroadcastReport{Recipients: len(recipients)}
	notice := model.Announcement{Text: text}
	for _, id := range recipients {
		if err := s.notifier.Notify(ctx, id, notice); err != nil {
			report.Failed++
			logger.Logger().Warn("failed to send broadcast",
				zap.Int64("telegram_id", id),
				zap.Error(err))
			continue
		}
		report.Delivered++
	}

	logger.Logger().Info("broadcast finished",
		zap.Int("recipients", report.Recipients),
		zap.Int("delivered", report.Delivered),
		zap.Int("failed", report.Failed))

	return report, nil
}
