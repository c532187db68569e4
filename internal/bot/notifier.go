package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"points_bot/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type NotifierConfig struct {
	// RatePerSecond caps outbound notices, Telegram allows about 30 per
	// second per bot.
	RatePerSecond float64
	Burst         int
	Retries       int
	Backoff       time.Duration
}

func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		RatePerSecond: 25,
		Burst:         5,
		Retries:       2,
		Backoff:       time.Second,
	}
}

// Notifier delivers notices as chat messages. Sends share one rate limiter,
// so a broadcast cannot exceed the configured throughput.
type Notifier struct {
	api      Sender
	renderer *Renderer
	limiter  *rate.Limiter
	retries  int
	backoff  time.Duration
}

func NewNotifier(api Sender, renderer *Renderer, cfg NotifierConfig) *Notifier {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Notifier{
		api:      api,
		renderer: renderer,
		limiter:  rate.NewLimiter(limit, burst),
		retries:  cfg.Retries,
		backoff:  cfg.Backoff,
	}
}

func (n *Notifier) Notify(ctx context.Context, chatID int64, notice model.Outcome) error {
	for _, msg := range n.renderer.Messages(chatID, model.Response{Outcome: notice}) {
		if err := n.Send(ctx, msg); err != nil {
			return fmt.Errorf("failed to notify chat %d: %w", chatID, err)
		}
	}
	return nil
}

// Send delivers c, retrying transient failures. Flood control replies are
// honoured by waiting the requested time.
func (n *Notifier) Send(ctx context.Context, c tgbotapi.Chattable) error {
	for attempt := 0; ; attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}

		_, err := n.api.Send(c)
		if err == nil {
			return nil
		}
		if attempt >= n.retries || permanent(err) {
			return err
		}

		wait := n.backoff * time.Duration(attempt+1)
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			wait = time.Duration(apiErr.RetryAfter) * time.Second
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// permanent reports failures a retry cannot fix: the user blocked the bot,
// the chat does not exist, the request is malformed.
func permanent(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
