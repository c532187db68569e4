package bot

import (
	"fmt"
	"strconv"
	"strings"

	"points_bot/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram rejects messages longer than this many UTF-16 units; staying
// under it in runes keeps long listings safe.
const maxMessageLength = 4000

const nextClaimLayout = "2006-01-02 15:04"

// Renderer turns router outcomes into chat messages.
type Renderer struct {
	botUsername string
	tasks       []model.Task
}

func NewRenderer(botUsername string, tasks []model.Task) *Renderer {
	return &Renderer{
		botUsername: botUsername,
		tasks:       tasks,
	}
}

// Messages renders resp for chatID. Silent outcomes yield no messages; long
// listings are split across several.
func (r *Renderer) Messages(chatID int64, resp model.Response) []tgbotapi.MessageConfig {
	var texts []string
	if w, ok := resp.Outcome.(model.Welcome); ok && w.Referral != nil {
		if text := r.Text(w.Referral); text != "" {
			texts = append(texts, text)
		}
	}
	if text := r.Text(resp.Outcome); text != "" {
		texts = append(texts, splitText(text, maxMessageLength)...)
	}

	msgs := make([]tgbotapi.MessageConfig, 0, len(texts))
	for i, text := range texts {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if i == len(texts)-1 {
			if markup := r.Keyboard(resp.Menu); markup != nil {
				msg.ReplyMarkup = markup
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (r *Renderer) Keyboard(menu model.Menu) any {
	switch menu {
	case model.MenuMain:
		return r.mainKeyboard()
	case model.MenuAdmin:
		return adminKeyboard()
	}
	return nil
}

func (r *Renderer) mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonReferral), tgbotapi.NewKeyboardButton(ButtonPoints)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonRedeem), tgbotapi.NewKeyboardButton(ButtonLeaderboard)),
	}

	last := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonDaily))
	for _, task := range r.tasks {
		last = append(last, tgbotapi.NewKeyboardButton(TaskButton(task)))
		if len(last) == 2 {
			rows = append(rows, last)
			last = nil
		}
	}
	if len(last) > 0 {
		rows = append(rows, last)
	}

	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonHelp)))

	return tgbotapi.NewReplyKeyboard(rows...)
}

func adminKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonBroadcast), tgbotapi.NewKeyboardButton(ButtonBan)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonUnban), tgbotapi.NewKeyboardButton(ButtonEditPoints)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonStats), tgbotapi.NewKeyboardButton(ButtonViewUsers)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonBack)),
	)
}

func gateKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonJoinChannels),
			tgbotapi.NewKeyboardButton(ButtonCheckAgain),
		),
	)
}

func (r *Renderer) ReferralLink(userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", r.botUsername, userID)
}

// Text is the message body for o, empty when nothing should be sent.
func (r *Renderer) Text(o model.Outcome) string {
	switch o := o.(type) {
	case model.Welcome:
		return fmt.Sprintf("👋 Welcome %s!\n\n📊 Points: %d\n👥 Referrals: %d\n\nChoose an option from the menu below:",
			o.DisplayName, o.Points, o.Referrals)

	case model.Help:
		return "ℹ️ Bot Help:\n\n" +
			"1. Join our channels\n" +
			"2. Share your referral link\n" +
			"3. Earn points when friends join\n" +
			fmt.Sprintf("4. Claim rewards at %d points", o.RedeemCost)

	case model.ReferralLink:
		return fmt.Sprintf("🔗 Your referral link:\n%s\n\n"+
			"Share this link with your friends. You'll get %d points when they join!\n"+
			"👥 Referrals so far: %d",
			r.ReferralLink(o.UserID), o.Bonus, o.Referrals)

	case model.ReferralRegistered:
		return "🔄 First click registered! Please click the referral link again to confirm."

	case model.ReferralConfirmed:
		return fmt.Sprintf("🎉 Congratulations! You've been referred by %s!\n\n"+
			"You received: +%d points 🎁\n"+
			"Current balance: %d points\n\n"+
			"Start earning by sharing your referral link! 🔗",
			nameOr(o.ReferrerName, o.ReferrerID), o.Awarded, o.Balance)

	case model.ReferralCredited:
		return fmt.Sprintf("🎉 Congratulations! New Referral Success!\n\n"+
			"User: %s\n"+
			"You received: +%d points 🎁\n"+
			"Total referrals: %d\n"+
			"Current balance: %d points",
			o.ReferredName, o.Awarded, o.Referrals, o.Balance)

	case model.Balance:
		return fmt.Sprintf("💰 Your Points: %d\n👥 Total Referrals: %d\n🎁 Rewards Claimed: %d",
			o.Points, o.Referrals, o.RewardsClaimed)

	case model.DailyGranted:
		return fmt.Sprintf("🎁 Daily Reward Claimed!\n+%d points!\nCurrent balance: %d points", o.Awarded, o.Balance)

	case model.DailyAlreadyClaimed:
		return fmt.Sprintf("❌ You've already claimed your daily reward today.\nCome back after %s UTC!",
			o.NextEligible.UTC().Format(nextClaimLayout))

	case model.InsufficientPoints:
		return fmt.Sprintf("❌ You need at least %d points to claim a reward!\nCurrent points: %d\nPoints still needed: %d",
			o.Cost, o.Have, o.Needed)

	case model.EmailRequested:
		return "🎁 Great! To claim your reward, please enter your email address:"

	case model.InvalidEmail:
		return "❌ Invalid email format! Please enter a valid email address."

	case model.RedemptionCompleted:
		return fmt.Sprintf("✅ Reward claimed successfully!\nRemaining points: %d\nAn admin will contact you soon.", o.Remaining)

	case model.RedemptionClaimed:
		return fmt.Sprintf("🎁 New Reward Claim!\n\n"+
			"User: %s (%d)\n"+
			"Email: %s\n"+
			"Total Claims: %d\n"+
			"Remaining Points: %d\n"+
			"Claim: %s",
			nameOr(o.DisplayName, o.UserID), o.UserID, o.Email, o.TotalClaims, o.Remaining, o.ClaimID)

	case model.Leaderboard:
		return renderLeaderboard(o)

	case model.TaskInfo:
		text := fmt.Sprintf("🎯 Complete %s Task:\n\n"+
			"1. Click this link:\n%s\n\n"+
			"2. Complete the registration\n"+
			"3. Send the link back here to verify\n\n"+
			"Earn %d points upon completion! 🎁",
			o.Task.Title, o.Task.Link, o.Task.Reward)
		switch o.Phase {
		case model.TaskPhaseClicked:
			text += "\n\n🔄 First click registered, send the link once more to confirm."
		case model.TaskPhaseCompleted:
			text += "\n\n✅ You have already completed this task."
		}
		return text

	case model.TaskFirstClick:
		return fmt.Sprintf("✅ First click on %s referral registered!\nPlease click the link again to confirm your participation.", o.Task.Title)

	case model.TaskCompleted:
		return fmt.Sprintf("🎉 Congratulations! You've completed the %s task.\n%d points have been added to your account!",
			o.Task.Title, o.Awarded)

	case model.TaskAlreadyCompleted:
		return fmt.Sprintf("✅ You have already completed the %s task.", o.Task.Title)

	case model.Banned:
		return "🚫 You are banned from using this bot."

	case model.AccessDenied:
		return "❌ Access denied!"

	case model.InvalidArgument:
		return "Usage: " + o.Usage

	case model.TargetNotFound:
		return fmt.Sprintf("❌ User %d not found", o.UserID)

	case model.AdminPanel:
		return "🔐 Admin Panel:"

	case model.BanUpdated:
		if o.Banned {
			return fmt.Sprintf("🚫 User %d has been banned", o.UserID)
		}
		return fmt.Sprintf("✅ User %d has been unbanned", o.UserID)

	case model.PointsSet:
		return fmt.Sprintf("💰 Set %d points for user %d", o.Points, o.UserID)

	case model.StatsReport:
		return fmt.Sprintf("📊 Bot Statistics:\n\n"+
			"👥 Total Users: %d\n"+
			"💰 Total Points: %d\n"+
			"🔗 Total Referrals: %d\n"+
			"🎁 Rewards Claimed: %d\n"+
			"🚫 Banned Users: %d\n"+
			"⚠️ Failed Saves: %d",
			o.Stats.TotalUsers, o.Stats.TotalPoints, o.Stats.TotalReferrals,
			o.Stats.RewardsClaimed, o.Stats.BannedUsers, o.Stats.PersistFailures)

	case model.UserList:
		return renderUsers(o)

	case model.Announcement:
		return o.Text

	case model.BroadcastReport:
		return fmt.Sprintf("✅ Broadcast sent to %d of %d users (%d failed)", o.Delivered, o.Recipients, o.Failed)

	case model.Failure:
		return "❌ An error occurred. Please try again."
	}

	return ""
}

func renderLeaderboard(o model.Leaderboard) string {
	if len(o.Entries) == 0 {
		return "🏆 Top Referrers:\n\nNo referrals yet. Be the first!"
	}

	var b strings.Builder
	b.WriteString("🏆 Top Referrers:\n\n")
	for _, e := range o.Entries {
		fmt.Fprintf(&b, "%d. %s: %d referrals\n", e.Rank, nameOr(e.DisplayName, e.TelegramID), e.Referrals)
	}

	if o.Rank > 0 {
		fmt.Fprintf(&b, "\nYour rank: #%d", o.Rank)
	} else {
		b.WriteString("\nYou are not on the board yet.")
	}

	return b.String()
}

func renderUsers(o model.UserList) string {
	if len(o.Users) == 0 {
		return "👥 No users yet."
	}

	var b strings.Builder
	b.WriteString("👥 All Users:\n\n")
	for _, u := range o.Users {
		fmt.Fprintf(&b, "• %s (%d)", nameOr(u.DisplayName, u.TelegramID), u.TelegramID)
		if u.Banned {
			b.WriteString(" 🚫")
		}
		fmt.Fprintf(&b, "\n  Points: %d | Referrals: %d\n\n", u.Points, u.Referrals)
	}
	return strings.TrimRight(b.String(), "\n")
}

// nameOr falls back to a short id based label for users without a name.
func nameOr(name string, id int64) string {
	if name != "" {
		return name
	}
	s := strconv.FormatInt(id, 10)
	if len(s) > 4 {
		s = s[:4]
	}
	return "User" + s
}

// splitText cuts text at line breaks into chunks of at most limit runes.
// A single longer line is cut hard.
func splitText(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		chunks  []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.TrimRight(string(current), "\n"))
			current = current[:0]
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		if len(current)+len(runes) > limit {
			flush()
		}
		for len(runes) > limit {
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		current = append(current, runes...)
	}
	flush()

	return chunks
}
