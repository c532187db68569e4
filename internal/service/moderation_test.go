package service

import (
	"context"
	"errors"
	"testing"

	"points_bot/internal/model"
	"points_bot/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestModerationService_Authorize(t *testing.T) {
	svc, _ := newTestService(nil)

	assert.NoError(t, svc.Moderation.Authorize(testModeratorID))
	assert.ErrorIs(t, svc.Moderation.Authorize(1), ErrAccessDenied)

	unconfigured := NewModerationService(nil, nil, 0)
	assert.ErrorIs(t, unconfigured.Authorize(0), ErrAccessDenied)
}

func TestModerationService_SetPoints(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		caller        int64
		target        int64
		points        int
		expectedError error
		expectPoints  int
	}{
		{"Moderator overwrites balance", testModeratorID, 1, 7, nil, 7},
		{"Moderator may set a negative balance", testModeratorID, 1, -20, nil, -20},
		{"Other callers are rejected", 2, 1, 500, ErrAccessDenied, 40},
		{"Unknown target", testModeratorID, 99, 10, ErrUserNotFound, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(nil, seedUser(1, "alice", 40), seedUser(2, "bob", 0))

			err := svc.Moderation.SetPoints(ctx, tt.caller, tt.target, tt.points)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectPoints, getUser(t, store, 1).Points)
		})
	}
}

func TestModerationService_SetBanned(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(nil, seedUser(1, "alice", 40))

	require.NoError(t, svc.Moderation.SetBanned(ctx, testModeratorID, 1, true))
	assert.True(t, getUser(t, store, 1).Banned)

	require.NoError(t, svc.Moderation.SetBanned(ctx, testModeratorID, 1, false))
	assert.False(t, getUser(t, store, 1).Banned)

	assert.ErrorIs(t, svc.Moderation.SetBanned(ctx, 1, 1, true), ErrAccessDenied)
	assert.False(t, getUser(t, store, 1).Banned)

	assert.ErrorIs(t, svc.Moderation.SetBanned(ctx, testModeratorID, 55, true), ErrUserNotFound)
}

func TestModerationService_Stats(t *testing.T) {
	ctx := context.Background()

	banned := seedUser(3, "carol", 5)
	banned.Banned = true
	claimer := seedUser(2, "bob", 30)
	claimer.RewardsClaimed = 2
	claimer.Referrals = 4

	svc, _ := newTestService(nil, seedUser(1, "alice", 10), claimer, banned)

	stats, err := svc.Moderation.Stats(ctx, testModeratorID)
	require.NoError(t, err)

	assert.Equal(t, model.Stats{
		TotalUsers:     3,
		TotalPoints:    45,
		TotalReferrals: 4,
		RewardsClaimed: 2,
		BannedUsers:    1,
	}, stats)

	_, err = svc.Moderation.Stats(ctx, 1)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestModerationService_Broadcast(t *testing.T) {
	ctx := context.Background()
	notice := model.Announcement{Text: "maintenance tonight"}

	notifier := &mocks.MockNotifier{}
	notifier.On("Notify", mock.Anything, int64(1), notice).Return(nil).Once()
	notifier.On("Notify", mock.Anything, int64(2), notice).Return(errors.New("bot was blocked by the user")).Once()
	notifier.On("Notify", mock.Anything, int64(3), notice).Return(nil).Once()

	banned := seedUser(3, "carol", 0)
	banned.Banned = true
	svc, _ := newTestService(notifier, seedUser(1, "alice", 0), seedUser(2, "bob", 0), banned)

	report, err := svc.Moderation.Broadcast(ctx, testModeratorID, "maintenance tonight")
	require.NoError(t, err)

	assert.Equal(t, model.BroadcastReport{Recipients: 3, Delivered: 2, Failed: 1}, report)
	notifier.AssertExpectations(t)
}

func TestModerationService_Broadcast_AccessDenied(t *testing.T) {
	notifier := &mocks.MockNotifier{}
	svc, _ := newTestService(notifier, seedUser(1, "alice", 0))

	_, err := svc.Moderation.Broadcast(context.Background(), 1, "hi")

	assert.ErrorIs(t, err, ErrAccessDenied)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}
