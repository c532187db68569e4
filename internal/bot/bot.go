package bot

import (
	"context"
	"fmt"
	"sync"

	"points_bot/internal/model"
	"points_bot/internal/service"
	"points_bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Config struct {
	BotToken         string
	Debug            bool
	BotUsername      string
	RequiredChannels []string
	// UpdateTimeout is the long-poll timeout in seconds.
	UpdateTimeout int
}

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Sender
	ChatMemberGetter
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewAPI connects to Telegram and fills in the bot username when the config
// leaves it empty.
func NewAPI(cfg *Config) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	api.Debug = cfg.Debug
	if cfg.BotUsername == "" {
		cfg.BotUsername = api.Self.UserName
	}

	return api, nil
}

// Bot feeds chat updates to the router and sends back the rendered
// responses.
type Bot struct {
	api      API
	router   *service.Router
	renderer *Renderer
	notifier *Notifier
	gate     *Gate
	tasks    []model.Task
	timeout  int

	wg sync.WaitGroup
}

func New(api API, router *service.Router, renderer *Renderer, notifier *Notifier, cfg Config) *Bot {
	timeout := cfg.UpdateTimeout
	if timeout <= 0 {
		timeout = 60
	}

	return &Bot{
		api:      api,
		router:   router,
		renderer: renderer,
		notifier: notifier,
		gate:     NewGate(api, cfg.RequiredChannels),
		tasks:    router.Service().Tasks.List(),
		timeout:  timeout,
	}
}

// Run processes updates one at a time until ctx is cancelled. Broadcasts run
// in the background so the loop keeps serving other users.
func (b *Bot) Run(ctx context.Context) {
	defer b.wg.Wait()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.timeout

	updates := b.api.GetUpdatesChan(updateConfig)
	defer b.api.StopReceivingUpdates()

	logger.Logger().Info("bot started, waiting for updates")

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)

		case <-ctx.Done():
			logger.Logger().Info("bot stopped")
			return
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}

	if !b.admitted(msg.From.ID) {
		b.gated(ctx, msg)
		return
	}

	ev := Classify(msg, b.tasks)
	if ev.Intent == model.IntentBroadcast {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.reply(ctx, msg.Chat.ID, b.router.Dispatch(ctx, ev))
		}()
		return
	}

	b.reply(ctx, msg.Chat.ID, b.router.Dispatch(ctx, ev))
}

// admitted lets the moderator through without a subscription check.
func (b *Bot) admitted(userID int64) bool {
	if !b.gate.Enabled() || userID == b.router.Service().Moderation.ModeratorID() {
		return true
	}
	return b.gate.Member(userID)
}

func (b *Bot) gated(ctx context.Context, msg *tgbotapi.Message) {
	var reply tgbotapi.MessageConfig
	switch msg.Text {
	case ButtonJoinChannels:
		reply = b.gate.JoinInfo(msg.Chat.ID)
	case ButtonCheckAgain:
		reply = b.gate.NotJoined(msg.Chat.ID)
	default:
		reply = b.gate.Prompt(msg.Chat.ID)
	}

	if err := b.notifier.Send(ctx, reply); err != nil {
		logger.Logger().Error("failed to send membership prompt",
			zap.Int64("telegram_id", msg.From.ID),
			zap.Error(err))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, resp model.Response) {
	for _, msg := range b.renderer.Messages(chatID, resp) {
		if err := b.notifier.Send(ctx, msg); err != nil {
			logger.Logger().Error("failed to send reply",
				zap.Int64("chat_id", chatID),
				zap.String("outcome", resp.Outcome.Kind()),
				zap.Error(err))
			return
		}
	}
}
