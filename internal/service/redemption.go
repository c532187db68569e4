package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"points_bot/internal/model"
	"points_bot/internal/repository"
	"points_bot/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

type RedemptionService struct {
	ledger      Ledger
	notifier    Notifier
	cost        int
	moderatorID int64
}

func NewRedemptionService(ledger Ledger, notifier Notifier, cost int, moderatorID int64) *RedemptionService {
	return &RedemptionService{
		ledger:      ledger,
		notifier:    notifier,
		cost:        cost,
		moderatorID: moderatorID,
	}
}

func (s *RedemptionService) Cost() int {
	return s.cost
}

// Request starts a redemption. Without an email on file the user enters the
// email capture sub-state; with one the redemption completes immediately.
func (s *RedemptionService) Request(ctx context.Context, telegramID int64) (model.Outcome, error) {
	var (
		outcome model.Outcome
		claim   *model.RedemptionClaimed
	)

	err := s.ledger.Update(ctx, func(tx *repository.Tx) error {
		user, err := lookupUser(tx, telegramID)
		if err != nil {
			return err
		}

		if user.Points < s.cost {
			outcome = s.insufficient(user)
			return nil
		}

		if user.AwaitingEmail {
			outcome = model.EmailRequested{}
			return nil
		}

		if user.Email == "" {
			user.AwaitingEmail = true
			outcome = model.EmailRequested{}
			return tx.Put(user)
		}

		outcome, claim = s.complete(user, user.Email)
		return tx.Put(user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request redemption: %w", err)
	}

	s.announce(ctx, claim)

	return outcome, nil
}

// SubmitEmail consumes one free-text message of a user awaiting email
// capture. Invalid input leaves the capture pending.
func (s *RedemptionService) SubmitEmail(ctx context.Context, telegramID int64, text string) (model.Outcome, error) {
	email := strings.TrimSpace(text)

	var (
		outcome model.Outcome
		claim   *model.RedemptionClaimed
	)

	err := s.ledger.Update(ctx, func(tx *repository.Tx) error {
		user, err := lookupUser(tx, telegramID)
		if err != nil {
			return err
		}

		if !user.AwaitingEmail {
			outcome = model.Ignored{}
			return nil
		}

		if !ValidEmail(email) {
			outcome = model.InvalidEmail{}
			return nil
		}

		// The balance may have changed since the request, e.g. a moderator edit.
		if user.Points < s.cost {
			user.AwaitingEmail = false
			outcome = s.insufficient(user)
			return tx.Put(user)
		}

		outcome, claim = s.complete(user, email)
		return tx.Put(user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit email: %w", err)
	}

	s.announce(ctx, claim)

	return outcome, nil
}

func (s *RedemptionService) insufficient(user *model.User) model.InsufficientPoints {
	return model.InsufficientPoints{
		Needed: s.cost - user.Points,
		Have:   user.Points,
		Cost:   s.cost,
	}
}

func (s *RedemptionService) complete(user *model.User, email string) (model.Outcome, *model.RedemptionClaimed) {
	user.Points -= s.cost
	user.Email = email
	user.AwaitingEmail = false
	user.RewardsClaimed++

	claimID := uuid.New()

	return model.RedemptionCompleted{
			ClaimID:   claimID,
			Email:     email,
			Remaining: user.Points,
		}, &model.RedemptionClaimed{
			ClaimID:     claimID,
			UserID:      user.TelegramID,
			DisplayName: user.DisplayName,
			Email:       email,
			TotalClaims: user.RewardsClaimed,
			Remaining:   user.Points,
		}
}

func (s *RedemptionService) announce(ctx context.Context, claim *model.RedemptionClaimed) {
	if claim == nil {
		return
	}

	logger.Logger().Info("reward redeemed",
		zap.Int64("telegram_id", claim.UserID),
		zap.String("claim_id", claim.ClaimID.String()),
		zap.Int("remaining", claim.Remaining))

	notify(ctx, s.notifier, s.moderatorID, *claim)
}
