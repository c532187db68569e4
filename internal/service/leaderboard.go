package service

import (
	"context"
	"fmt"
	"sort"

	"points_bot/internal/model"
	"points_bot/internal/repository"
)

// LeaderboardService ranks users by confirmed referrals, highest first. Ties
// keep first-seen order. Banned users are not ranked.
type LeaderboardService struct {
	ledger Ledger
}

func NewLeaderboardService(ledger Ledger) *LeaderboardService {
	return &LeaderboardService{ledger: ledger}
}

func (s *LeaderboardService) Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	ranking, err := s.ranking(ctx)
	if err != nil {
		return nil, err
	}
	if n >= 0 && n < len(ranking) {
		ranking = ranking[:n]
	}
	return ranking, nil
}

// RankOf returns the 1-based position of telegramID, and false when the user
// is not within the first n places.
func (s *LeaderboardService) RankOf(ctx context.Context, telegramID int64, n int) (int, bool, error) {
	ranking, err := s.ranking(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, e := range ranking {
		if e.TelegramID == telegramID {
			if e.Rank > n {
				return 0, false, nil
			}
			return e.Rank, true, nil
		}
	}
	return 0, false, nil
}

func (s *LeaderboardService) ranking(ctx context.Context) ([]model.LeaderboardEntry, error) {
	var users []*model.User
	err := s.ledger.View(ctx, func(tx *repository.Tx) error {
		users = tx.Users()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}

	return rank(users), nil
}

// rank expects users in first-seen order.
func rank(users []*model.User) []model.LeaderboardEntry {
	ranked := make([]*model.User, 0, len(users))
	for _, u := range users {
		if !u.Banned {
			ranked = append(ranked, u)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Referrals > ranked[j].Referrals
	})

	entries := make([]model.LeaderboardEntry, len(ranked))
	for i, u := range ranked {
		entries[i] = model.LeaderboardEntry{
			Rank:        i + 1,
			TelegramID:  u.TelegramID,
			DisplayName: u.DisplayName,
			Referrals:   u.Referrals,
			Points:      u.Points,
		}
	}
	return entries
}
