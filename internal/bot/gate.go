package bot

import (
	"fmt"
	"strings"

	"points_bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type ChatMemberGetter interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Gate admits only users subscribed to every required channel.
type Gate struct {
	api      ChatMemberGetter
	channels []string
}

func NewGate(api ChatMemberGetter, channels []string) *Gate {
	return &Gate{
		api:      api,
		channels: channels,
	}
}

func (g *Gate) Enabled() bool {
	return len(g.channels) > 0
}

// Member reports whether userID belongs to every required channel. Lookup
// failures count as not subscribed.
func (g *Gate) Member(userID int64) bool {
	for _, channel := range g.channels {
		member, err := g.api.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				SuperGroupUsername: channel,
				UserID:             userID,
			},
		})
		if err != nil {
			logger.Logger().Error("failed to check channel membership",
				zap.String("channel", channel),
				zap.Int64("telegram_id", userID),
				zap.Error(err))
			return false
		}

		switch member.Status {
		case "member", "administrator", "creator":
		default:
			logger.Logger().Debug("user is not subscribed",
				zap.String("channel", channel),
				zap.Int64("telegram_id", userID),
				zap.String("status", member.Status))
			return false
		}
	}
	return true
}

// Prompt is sent to users that have not joined yet.
func (g *Gate) Prompt(chatID int64) tgbotapi.MessageConfig {
	var b strings.Builder
	b.WriteString("🛑 Join Our Channels If You Want To Use The Bot:\n\n")
	for i, channel := range g.channels {
		fmt.Fprintf(&b, "%d➡️ %s\n", i+1, channel)
	}
	b.WriteString("\n✅ Done Subscribed! Click Check")

	return g.message(chatID, b.String())
}

func (g *Gate) JoinInfo(chatID int64) tgbotapi.MessageConfig {
	var b strings.Builder
	b.WriteString("🌟 Welcome to our Earning Community! 🌟\n\n")
	b.WriteString("Join our official channels to:\n")
	b.WriteString("• Get instant earning updates\n")
	b.WriteString("• Access exclusive reward opportunities\n")
	b.WriteString("• Stay informed about special bonuses\n\n")
	for _, channel := range g.channels {
		fmt.Fprintf(&b, "👉 %s\n", ChannelLink(channel))
	}
	fmt.Fprintf(&b, "\nClick '%s' after joining to activate your rewards!", ButtonCheckAgain)

	return g.message(chatID, b.String())
}

func (g *Gate) NotJoined(chatID int64) tgbotapi.MessageConfig {
	return g.message(chatID, "❌ You haven't joined all our channels yet.\nPlease join and try again.")
}

func (g *Gate) message(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = gateKeyboard()
	return msg
}

func ChannelLink(channel string) string {
	return "https://t.me/" + strings.TrimPrefix(channel, "@")
}
