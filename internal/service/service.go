package service

import (
	"context"
	"errors"
	"time"

	"points_bot/internal/model"
	"points_bot/internal/repository"
	"points_bot/pkg/logger"

	"go.uber.org/zap"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrTaskNotFound = errors.New("task not found")
	ErrAccessDenied = errors.New("access denied")
)

// Ledger is the store every handler reads, mutates and writes back through
// inside a single Update.
type Ledger interface {
	Update(ctx context.Context, fn func(tx *repository.Tx) error) error
	View(ctx context.Context, fn func(tx *repository.Tx) error) error
	Health() repository.Health
}

// Notifier delivers a notice to a chat. Delivery is best effort: callers log
// failures and never roll back a committed ledger change because of them.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, notice model.Outcome) error
}

type Clock func() time.Time

type Config struct {
	ModeratorID     int64
	ReferredBonus   int
	ReferrerBonus   int
	DailyBonus      int
	RedeemCost      int
	LeaderboardSize int
	Tasks           []model.Task
}

func DefaultConfig() Config {
	return Config{
		ReferredBonus:   5,
		ReferrerBonus:   10,
		DailyBonus:      5,
		RedeemCost:      100,
		LeaderboardSize: 10,
		Tasks: []model.Task{
			{
				ID:          "midas",
				Title:       "Midas RWA",
				Link:        "https://t.me/MidasRWA_bot/app?startapp=ref_326f2187-d1cb-43ab-bb7f-5ae74e3c93d6",
				ProofMarker: "MidasRWA_bot/app?startapp=ref_",
				Reward:      15,
			},
		},
	}
}

type Service struct {
	Users       *UserService
	Referrals   *ReferralService
	Daily       *DailyService
	Tasks       *TaskService
	Redemptions *RedemptionService
	Moderation  *ModerationService
	Leaderboard *LeaderboardService

	ledger Ledger
	cfg    Config
	now    Clock
}

func NewService(ledger Ledger, notifier Notifier, cfg Config, clock Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	if notifier == nil {
		notifier = Notifiers(nil)
	}

	return &Service{
		Users:       NewUserService(ledger, clock),
		Referrals:   NewReferralService(ledger, notifier, cfg.ReferredBonus, cfg.ReferrerBonus),
		Daily:       NewDailyService(ledger, cfg.DailyBonus),
		Tasks:       NewTaskService(ledger, cfg.Tasks),
		Redemptions: NewRedemptionService(ledger, notifier, cfg.RedeemCost, cfg.ModeratorID),
		Moderation:  NewModerationService(ledger, notifier, cfg.ModeratorID),
		Leaderboard: NewLeaderboardService(ledger),
		ledger:      ledger,
		cfg:         cfg,
		now:         clock,
	}
}

func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) Now() time.Time {
	return s.now()
}

// Health reports whether the persisted ledger keeps up with memory.
func (s *Service) Health() repository.Health {
	return s.ledger.Health()
}

// notify sends notice, or queues it when ctx carries an outbox.
func notify(ctx context.Context, n Notifier, chatID int64, notice model.Outcome) {
	if n == nil {
		return
	}
	if out, ok := outboxFrom(ctx); ok {
		out.add(n, chatID, notice)
		return
	}
	deliver(ctx, n, chatID, notice)
}

func deliver(ctx context.Context, n Notifier, chatID int64, notice model.Outcome) {
	if err := n.Notify(ctx, chatID, notice); err != nil {
		logger.Logger().Warn("failed to deliver notice",
			zap.Int64("chat_id", chatID),
			zap.String("notice", notice.Kind()),
			zap.Error(err))
	}
}

func lookupUser(tx *repository.Tx, telegramID int64) (*model.User, error) {
	u, err := tx.Get(telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
