package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"points_bot/internal/model"
	"points_bot/internal/repository"
	"points_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const moderatorID int64 = 1000

type mockAPI struct {
	mock.Mock

	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	// sendErrs are returned by the first Send calls, in order.
	sendErrs []error
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sendErrs) > 0 {
		err := m.sendErrs[0]
		m.sendErrs = m.sendErrs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.sent = append(m.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	args := m.Called(config.SuperGroupUsername, config.UserID)
	return args.Get(0).(tgbotapi.ChatMember), args.Error(1)
}

func (m *mockAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	args := m.Called()
	return args.Get(0).(tgbotapi.UpdatesChannel)
}

func (m *mockAPI) StopReceivingUpdates() {}

func (m *mockAPI) Sent() []tgbotapi.MessageConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]tgbotapi.MessageConfig, len(m.sent))
	copy(out, m.sent)
	return out
}

func textMessage(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "alice"},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		Text: text,
	}}
}

func commandMessage(userID int64, command, args string) tgbotapi.Update {
	text := "/" + command
	if args != "" {
		text += " " + args
	}
	update := textMessage(userID, text)
	update.Message.Entities = []tgbotapi.MessageEntity{
		{Type: "bot_command", Offset: 0, Length: len(command) + 1},
	}
	return update
}

func newTestBot(api *mockAPI, channels []string, users ...*model.User) (*Bot, *repository.Store) {
	store := repository.NewStore(context.Background(), repository.NewMemoryBackend(users...))

	cfg := service.DefaultConfig()
	cfg.ModeratorID = moderatorID

	renderer := NewRenderer("points_bot", cfg.Tasks)
	notifier := NewNotifier(api, renderer, NotifierConfig{Retries: 0})

	svc := service.NewService(store, notifier, cfg, nil)
	router := service.NewRouter(svc)

	return New(api, router, renderer, notifier, Config{RequiredChannels: channels}), store
}

func TestBot_HandleUpdate_Start(t *testing.T) {
	api := &mockAPI{}
	b, _ := newTestBot(api, nil)

	b.HandleUpdate(context.Background(), commandMessage(1, "start", ""))

	sent := api.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(1), sent[0].ChatID)
	assert.Contains(t, sent[0].Text, "👋 Welcome alice!")
	assert.IsType(t, tgbotapi.ReplyKeyboardMarkup{}, sent[0].ReplyMarkup)
}

func TestBot_HandleUpdate_ReferralNotifiesReferrer(t *testing.T) {
	api := &mockAPI{}
	b, store := newTestBot(api, nil, model.NewUser(2, "bob", time.Now(), 1))
	ctx := context.Background()

	b.HandleUpdate(ctx, commandMessage(1, "start", "2"))
	b.HandleUpdate(ctx, commandMessage(1, "start", "2"))

	sent := api.Sent()
	// registered + welcome, credited notice to the referrer, confirmed + welcome
	require.Len(t, sent, 5)
	assert.Contains(t, sent[0].Text, "First click registered")
	assert.Equal(t, int64(2), sent[2].ChatID)
	assert.Contains(t, sent[2].Text, "New Referral Success")
	assert.Contains(t, sent[3].Text, "referred by bob")

	_ = store.View(ctx, func(tx *repository.Tx) error {
		referrer, err := tx.Get(2)
		require.NoError(t, err)
		assert.Equal(t, 10, referrer.Points)
		return nil
	})
}

func TestBot_HandleUpdate_IgnoresGroupsAndSilentOutcomes(t *testing.T) {
	api := &mockAPI{}
	b, _ := newTestBot(api, nil)
	ctx := context.Background()

	group := textMessage(1, ButtonPoints)
	group.Message.Chat.Type = "group"
	b.HandleUpdate(ctx, group)

	b.HandleUpdate(ctx, textMessage(1, "just chatting"))
	b.HandleUpdate(ctx, tgbotapi.Update{})

	assert.Empty(t, api.Sent())
}

func TestBot_HandleUpdate_MembershipGate(t *testing.T) {
	channels := []string{"@first", "@second"}
	ctx := context.Background()

	t.Run("Non member gets the prompt", func(t *testing.T) {
		api := &mockAPI{}
		api.On("GetChatMember", "@first", int64(1)).Return(tgbotapi.ChatMember{Status: "left"}, nil)
		b, store := newTestBot(api, channels)

		b.HandleUpdate(ctx, commandMessage(1, "start", ""))

		sent := api.Sent()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].Text, "Join Our Channels")
		assert.Contains(t, sent[0].Text, "@second")

		// nothing reaches the ledger
		_ = store.View(ctx, func(tx *repository.Tx) error {
			assert.False(t, tx.Exists(1))
			return nil
		})
	})

	t.Run("Join button lists channel links", func(t *testing.T) {
		api := &mockAPI{}
		api.On("GetChatMember", "@first", int64(1)).Return(tgbotapi.ChatMember{}, errors.New("chat not found"))
		b, _ := newTestBot(api, channels)

		b.HandleUpdate(ctx, textMessage(1, ButtonJoinChannels))

		sent := api.Sent()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].Text, "https://t.me/first")
		assert.Contains(t, sent[0].Text, "https://t.me/second")
	})

	t.Run("Check again after joining shows the welcome", func(t *testing.T) {
		api := &mockAPI{}
		api.On("GetChatMember", "@first", int64(1)).Return(tgbotapi.ChatMember{Status: "member"}, nil)
		api.On("GetChatMember", "@second", int64(1)).Return(tgbotapi.ChatMember{Status: "administrator"}, nil)
		b, _ := newTestBot(api, channels)

		b.HandleUpdate(ctx, textMessage(1, ButtonCheckAgain))

		sent := api.Sent()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].Text, "Welcome")
		api.AssertExpectations(t)
	})

	t.Run("Moderator skips the check", func(t *testing.T) {
		api := &mockAPI{}
		b, _ := newTestBot(api, channels)

		b.HandleUpdate(ctx, commandMessage(moderatorID, "admin", ""))

		sent := api.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "🔐 Admin Panel:", sent[0].Text)
		api.AssertNotCalled(t, "GetChatMember", mock.Anything, mock.Anything)
	})
}

func TestBot_Run_StopsOnClosedChannel(t *testing.T) {
	api := &mockAPI{}
	updates := make(chan tgbotapi.Update, 2)
	updates <- commandMessage(1, "help", "")
	close(updates)
	api.On("GetUpdatesChan").Return(tgbotapi.UpdatesChannel(updates))

	b, _ := newTestBot(api, nil)

	done := make(chan struct{})
	go func() {
		b.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	sent := api.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Bot Help")
}

func TestBot_Run_BroadcastReachesEveryUser(t *testing.T) {
	api := &mockAPI{}
	updates := make(chan tgbotapi.Update, 1)
	updates <- commandMessage(moderatorID, "broadcast", "season two\nstarts today")
	close(updates)
	api.On("GetUpdatesChan").Return(tgbotapi.UpdatesChannel(updates))

	b, _ := newTestBot(api, nil,
		model.NewUser(1, "alice", time.Now(), 1),
		model.NewUser(2, "bob", time.Now(), 2))

	b.Run(context.Background())

	sent := api.Sent()
	require.Len(t, sent, 3)

	received := map[int64]string{}
	for _, msg := range sent[:2] {
		received[msg.ChatID] = msg.Text
	}
	assert.Equal(t, map[int64]string{1: "season two\nstarts today", 2: "season two\nstarts today"}, received)
	assert.Equal(t, "✅ Broadcast sent to 2 of 2 users (0 failed)", sent[2].Text)
}
