package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"points_bot/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Notify(t *testing.T) {
	ctx := context.Background()
	renderer := NewRenderer("points_bot", nil)

	tests := []struct {
		name        string
		retries     int
		sendErrs    []error
		expectErr   bool
		expectSends int
	}{
		{
			name:        "Delivered on first attempt",
			expectSends: 1,
		},
		{
			name:        "Transient failure is retried",
			retries:     2,
			sendErrs:    []error{errors.New("connection reset")},
			expectSends: 1,
		},
		{
			name:        "Flood control is retried",
			retries:     1,
			sendErrs:    []error{&tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 0}}},
			expectSends: 1,
		},
		{
			name:      "Blocked user is not retried",
			retries:   3,
			sendErrs:  []error{&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}, nil},
			expectErr: true,
		},
		{
			name:      "Retries exhausted",
			retries:   1,
			sendErrs:  []error{errors.New("timeout"), errors.New("timeout"), nil},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{sendErrs: tt.sendErrs}
			n := NewNotifier(api, renderer, NotifierConfig{Retries: tt.retries, Backoff: time.Millisecond})

			err := n.Notify(ctx, 7, model.Announcement{Text: "hello"})

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, api.Sent(), tt.expectSends)
		})
	}
}

func TestNotifier_Send_CancelledContext(t *testing.T) {
	api := &mockAPI{sendErrs: []error{errors.New("timeout")}}
	n := NewNotifier(api, NewRenderer("points_bot", nil), NotifierConfig{Retries: 5, Backoff: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := n.Send(ctx, tgbotapi.NewMessage(1, "hi"))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotifier_RateLimit(t *testing.T) {
	api := &mockAPI{}
	n := NewNotifier(api, NewRenderer("points_bot", nil), NotifierConfig{RatePerSecond: 50, Burst: 1})

	start := time.Now()
	for i := 0; i < 6; i++ {
		require.NoError(t, n.Notify(context.Background(), int64(i), model.Announcement{Text: "hi"}))
	}

	// five waits of 20ms after the first token
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Len(t, api.Sent(), 6)
}
