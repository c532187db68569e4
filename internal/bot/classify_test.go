package bot

import (
	"testing"

	"points_bot/internal/model"
	"points_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tasks := service.DefaultConfig().Tasks

	tests := []struct {
		name         string
		update       func() *model.Event
		expectIntent model.Intent
		expectArgs   []string
	}{
		{"Start without referrer", classified(commandMessage(1, "start", ""), tasks), model.IntentStart, nil},
		{"Start with referrer", classified(commandMessage(1, "start", "42"), tasks), model.IntentStart, []string{"42"}},
		{"Ban command", classified(commandMessage(1, "ban", " 77 "), tasks), model.IntentBan, []string{"77"}},
		{"Points command", classified(commandMessage(1, "points", "77 250"), tasks), model.IntentSetPoints, []string{"77", "250"}},
		{"Broadcast keeps the text whole", classified(commandMessage(1, "broadcast", "hello  all\nbye"), tasks), model.IntentBroadcast, []string{"hello  all\nbye"}},
		{"Unknown command", classified(commandMessage(1, "weather", ""), tasks), model.IntentUnknown, nil},
		{"Main menu button", classified(textMessage(1, ButtonDaily), tasks), model.IntentClaimDaily, nil},
		{"Admin button", classified(textMessage(1, ButtonViewUsers), tasks), model.IntentListUsers, nil},
		{"Back button", classified(textMessage(1, ButtonBack), tasks), model.IntentStart, nil},
		{"Task button", classified(textMessage(1, "🔥 Midas RWA Task"), tasks), model.IntentTaskInfo, []string{"midas"}},
		{"Free text", classified(textMessage(1, "a@b.co"), tasks), model.IntentFreeText, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := tt.update()
			assert.Equal(t, tt.expectIntent, ev.Intent)
			assert.Equal(t, tt.expectArgs, ev.Args)
			assert.Equal(t, int64(1), ev.UserID)
			assert.Equal(t, "alice", ev.DisplayName)
		})
	}
}

func TestClassify_KeepsRawText(t *testing.T) {
	update := textMessage(5, "  a@b.co ")
	update.Message.From.FirstName = ""
	update.Message.From.UserName = "al"

	ev := Classify(update.Message, nil)

	assert.Equal(t, "  a@b.co ", ev.Text)
	assert.Equal(t, "al", ev.DisplayName)
}

func classified(update tgbotapi.Update, tasks []model.Task) func() *model.Event {
	return func() *model.Event {
		ev := Classify(update.Message, tasks)
		return &ev
	}
}
