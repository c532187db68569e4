package bot

import (
	"strings"

	"points_bot/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Reply keyboard labels. A press arrives as a plain text message carrying
// the label.
const (
	ButtonReferral    = "👥 Refer & Earn"
	ButtonPoints      = "💰 My Points"
	ButtonRedeem      = "🎁 Claim Reward"
	ButtonLeaderboard = "🏆 Leaderboard"
	ButtonDaily       = "📅 Daily Reward"
	ButtonHelp        = "ℹ️ Help"

	ButtonBroadcast  = "📢 Broadcast"
	ButtonBan        = "🚫 Ban User"
	ButtonUnban      = "✅ Unban User"
	ButtonEditPoints = "💰 Edit Points"
	ButtonStats      = "📊 User Stats"
	ButtonViewUsers  = "👥 View Users"
	ButtonBack       = "🔙 Back"

	ButtonJoinChannels = "✅ Join Channels"
	ButtonCheckAgain   = "🔄 Check Again"
)

var commandIntents = map[string]model.Intent{
	"start":     model.IntentStart,
	"help":      model.IntentHelp,
	"admin":     model.IntentAdminPanel,
	"ban":       model.IntentBan,
	"unban":     model.IntentUnban,
	"points":    model.IntentSetPoints,
	"stats":     model.IntentStats,
	"users":     model.IntentListUsers,
	"broadcast": model.IntentBroadcast,
}

var buttonIntents = map[string]model.Intent{
	ButtonReferral:    model.IntentReferralLink,
	ButtonPoints:      model.IntentViewPoints,
	ButtonRedeem:      model.IntentRedeem,
	ButtonLeaderboard: model.IntentLeaderboard,
	ButtonDaily:       model.IntentClaimDaily,
	ButtonHelp:        model.IntentHelp,

	// Admin buttons without arguments answer with the command usage.
	ButtonBroadcast:  model.IntentBroadcast,
	ButtonBan:        model.IntentBan,
	ButtonUnban:      model.IntentUnban,
	ButtonEditPoints: model.IntentSetPoints,
	ButtonStats:      model.IntentStats,
	ButtonViewUsers:  model.IntentListUsers,
	ButtonBack:       model.IntentStart,

	// Reaching the router at all means the membership gate passed.
	ButtonJoinChannels: model.IntentStart,
	ButtonCheckAgain:   model.IntentStart,
}

// TaskButton is the main menu label of a task.
func TaskButton(task model.Task) string {
	return "🔥 " + task.Title + " Task"
}

// Classify turns a chat message into an event for the router.
func Classify(msg *tgbotapi.Message, tasks []model.Task) model.Event {
	ev := model.Event{
		UserID:      msg.From.ID,
		DisplayName: displayName(msg.From),
		Intent:      model.IntentFreeText,
		Text:        msg.Text,
	}

	if msg.IsCommand() {
		intent, ok := commandIntents[strings.ToLower(msg.Command())]
		if !ok {
			ev.Intent = model.IntentUnknown
			return ev
		}
		ev.Intent = intent

		args := strings.TrimSpace(msg.CommandArguments())
		switch {
		case args == "":
		case intent == model.IntentBroadcast:
			// keep the announcement as typed, line breaks included
			ev.Args = []string{args}
		default:
			ev.Args = strings.Fields(args)
		}
		return ev
	}

	text := strings.TrimSpace(msg.Text)
	if intent, ok := buttonIntents[text]; ok {
		ev.Intent = intent
		return ev
	}

	for _, task := range tasks {
		if text == TaskButton(task) {
			ev.Intent = model.IntentTaskInfo
			ev.Args = []string{task.ID}
			return ev
		}
	}

	return ev
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.UserName
}
