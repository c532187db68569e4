package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"points_bot/internal/model"
	"points_bot/internal/repository"
	"points_bot/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testModeratorID int64 = 1000

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(notifier Notifier, users ...*model.User) (*Service, *repository.Store) {
	store := repository.NewStore(context.Background(), repository.NewMemoryBackend(users...))

	cfg := DefaultConfig()
	cfg.ModeratorID = testModeratorID

	return NewService(store, notifier, cfg, func() time.Time { return testNow }), store
}

func seedUser(id int64, name string, points int) *model.User {
	u := model.NewUser(id, name, testNow, id)
	u.Points = points
	return u
}

func getUser(t *testing.T, store *repository.Store, id int64) *model.User {
	t.Helper()

	var user *model.User
	err := store.View(context.Background(), func(tx *repository.Tx) error {
		u, err := tx.Get(id)
		user = u
		return err
	})
	require.NoError(t, err)
	return user
}

func TestNotifiers_Notify(t *testing.T) {
	ctx := context.Background()
	notice := model.Announcement{Text: "hello"}

	first := &mocks.MockNotifier{}
	second := &mocks.MockNotifier{}

	first.On("Notify", mock.Anything, int64(7), notice).Return(errors.New("chat unreachable"))
	second.On("Notify", mock.Anything, int64(7), notice).Return(nil)

	err := Notifiers{first, nil, second}.Notify(ctx, 7, notice)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "chat unreachable")
	first.AssertExpectations(t)
	second.AssertExpectations(t)

	assert.NoError(t, Notifiers(nil).Notify(ctx, 7, notice))
}

func TestUserService_Enter(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(nil, seedUser(1, "alice", 20))

	user, created, err := svc.Users.Enter(ctx, 2, "bob")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 0, user.Points)
	assert.Equal(t, model.PhaseNone, user.ReferralPhase)
	assert.Equal(t, testNow, user.JoinDate)

	user, created, err = svc.Users.Enter(ctx, 1, "alice_renamed")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 20, user.Points)
	assert.Equal(t, "alice_renamed", getUser(t, store, 1).DisplayName)

	// first-seen order survives a rename
	assert.Less(t, getUser(t, store, 1).Seq, getUser(t, store, 2).Seq)
}

func TestUserService_GetUser_NotFound(t *testing.T) {
	svc, _ := newTestService(nil)

	_, err := svc.Users.GetUser(context.Background(), 42)

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTwoPhase_Advance(t *testing.T) {
	awarded := 0
	protocol := twoPhase{award: func() { awarded++ }}

	phase := model.PhaseNone
	assert.Equal(t, stepRegistered, protocol.advance(&phase))
	assert.Equal(t, model.PhasePending, phase)

	assert.Equal(t, stepConfirmed, protocol.advance(&phase))
	assert.Equal(t, model.PhaseConfirmed, phase)

	for i := 0; i < 3; i++ {
		assert.Equal(t, stepDone, protocol.advance(&phase))
	}
	assert.Equal(t, 1, awarded)

	mismatched := twoPhase{matches: func() bool { return false }, award: func() { awarded++ }}
	phase = model.PhasePending
	assert.Equal(t, stepMismatch, mismatched.advance(&phase))
	assert.Equal(t, model.PhasePending, phase)
	assert.Equal(t, 1, awarded)
}
