package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"points_bot/internal/model"
	"points_bot/pkg/logger"

	"go.uber.org/zap"
)

const (
	usageBan       = "/ban <user_id>"
	usageUnban     = "/unban <user_id>"
	usageSetPoints = "/points <user_id> <points>"
	usageBroadcast = "/broadcast <message>"
)

// Router is the single entry point for inbound events. Events are processed
// one at a time, each to completion.
type Router struct {
	svc *Service
	mu  sync.Mutex
}

func NewRouter(svc *Service) *Router {
	return &Router{svc: svc}
}

func (r *Router) Service() *Service {
	return r.svc
}

// Dispatch routes ev to exactly one handler and returns the response for
// the transport. Unexpected failures are logged and reported as
// model.Failure.
func (r *Router) Dispatch(ctx context.Context, ev model.Event) model.Response {
	// Broadcast fan-out only reads the ledger and may take long; it does not
	// hold the event lock.
	if ev.Intent == model.IntentBroadcast {
		return r.broadcast(ctx, ev)
	}

	log := newEventLog(ev)

	// Notices raised while handling the event are sent once the lock is
	// released, so a slow chat delivery never holds up other users.
	ctx, out := withOutbox(ctx)
	defer out.flush(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	user, _, err := r.svc.Users.Enter(ctx, ev.UserID, ev.DisplayName)
	if err != nil {
		log.Error("failed to load user", zap.Error(err))
		return model.Response{Outcome: model.Failure{}}
	}

	if user.Banned {
		log.Info("banned user rejected")
		return model.Response{Outcome: model.Banned{}}
	}

	if user.AwaitingEmail && capturesText(ev.Intent) {
		return log.respond(r.svc.Redemptions.SubmitEmail(ctx, ev.UserID, ev.Text))
	}

	switch ev.Intent {
	case model.IntentStart:
		return r.start(ctx, log, ev)

	case model.IntentHelp:
		return model.Response{Outcome: model.Help{RedeemCost: r.svc.cfg.RedeemCost}}

	case model.IntentReferralLink:
		return model.Response{Outcome: model.ReferralLink{
			UserID:    user.TelegramID,
			Referrals: user.Referrals,
			Bonus:     r.svc.cfg.ReferrerBonus,
		}}

	case model.IntentViewPoints:
		balance, err := r.svc.Users.Balance(ctx, ev.UserID)
		return log.respond(balance, err)

	case model.IntentClaimDaily:
		return log.respond(r.svc.Daily.Claim(ctx, ev.UserID, r.svc.now()))

	case model.IntentRedeem:
		return log.respond(r.svc.Redemptions.Request(ctx, ev.UserID))

	case model.IntentLeaderboard:
		return r.leaderboard(ctx, log, ev)

	case model.IntentTaskInfo:
		return log.respond(r.svc.Tasks.Info(ctx, ev.UserID, r.taskID(ev)))

	case model.IntentTaskProof:
		return log.respond(r.svc.Tasks.SubmitProof(ctx, ev.UserID, r.taskID(ev), ev.Text))

	case model.IntentFreeText:
		if task, ok := r.svc.Tasks.MatchProof(ev.Text); ok {
			return log.respond(r.svc.Tasks.SubmitProof(ctx, ev.UserID, task.ID, ev.Text))
		}
		return model.Response{Outcome: model.Ignored{}}

	case model.IntentAdminPanel:
		if err := r.svc.Moderation.Authorize(ev.UserID); err != nil {
			return log.fail(err)
		}
		return model.Response{Outcome: model.AdminPanel{}, Menu: model.MenuAdmin}

	case model.IntentBan, model.IntentUnban:
		return r.setBanned(ctx, log, ev)

	case model.IntentSetPoints:
		return r.setPoints(ctx, log, ev)

	case model.IntentStats:
		stats, err := r.svc.Moderation.Stats(ctx, ev.UserID)
		return log.respond(model.StatsReport{Stats: stats}, err)

	case model.IntentListUsers:
		users, err := r.svc.Moderation.ListUsers(ctx, ev.UserID)
		return log.respond(model.UserList{Users: users}, err)
	}

	return model.Response{Outcome: model.Ignored{}}
}

// capturesText reports whether a pending email capture consumes an event of
// the given intent. Start and moderator commands are never consumed.
func capturesText(intent model.Intent) bool {
	return intent != model.IntentStart && !intent.Moderation()
}

func (r *Router) start(ctx context.Context, log eventLog, ev model.Event) model.Response {
	var referral model.Outcome
	if len(ev.Args) > 0 {
		if referrerID, err := strconv.ParseInt(strings.TrimSpace(ev.Args[0]), 10, 64); err == nil {
			outcome, err := r.svc.Referrals.Apply(ctx, ev.UserID, referrerID)
			if err != nil {
				return log.fail(err)
			}
			if _, ignored := outcome.(model.Ignored); !ignored {
				referral = outcome
			}
		}
	}

	user, err := r.svc.Users.GetUser(ctx, ev.UserID)
	if err != nil {
		return log.fail(err)
	}

	return model.Response{
		Outcome: model.Welcome{
			DisplayName: user.DisplayName,
			Points:      user.Points,
			Referrals:   user.Referrals,
			Referral:    referral,
		},
		Menu: model.MenuMain,
	}
}

func (r *Router) leaderboard(ctx context.Context, log eventLog, ev model.Event) model.Response {
	n := r.svc.cfg.LeaderboardSize
	entries, err := r.svc.Leaderboard.Top(ctx, n)
	if err != nil {
		return log.fail(err)
	}

	rank, ok, err := r.svc.Leaderboard.RankOf(ctx, ev.UserID, n)
	if err != nil {
		return log.fail(err)
	}
	if !ok {
		rank = 0
	}

	return model.Response{Outcome: model.Leaderboard{Entries: entries, Rank: rank}}
}

func (r *Router) taskID(ev model.Event) string {
	if len(ev.Args) > 0 && ev.Args[0] != "" {
		return ev.Args[0]
	}
	if task, ok := r.svc.Tasks.MatchProof(ev.Text); ok {
		return task.ID
	}
	if tasks := r.svc.Tasks.List(); len(tasks) > 0 {
		return tasks[0].ID
	}
	return ""
}

func (r *Router) setBanned(ctx context.Context, log eventLog, ev model.Event) model.Response {
	if err := r.svc.Moderation.Authorize(ev.UserID); err != nil {
		return log.fail(err)
	}

	banned := ev.Intent == model.IntentBan
	usage := usageUnban
	if banned {
		usage = usageBan
	}

	target, ok := argInt64(ev.Args, 0)
	if !ok {
		return model.Response{Outcome: model.InvalidArgument{Usage: usage}}
	}

	if err := r.svc.Moderation.SetBanned(ctx, ev.UserID, target, banned); err != nil {
		return log.targetFail(target, err)
	}

	return model.Response{Outcome: model.BanUpdated{UserID: target, Banned: banned}}
}

func (r *Router) setPoints(ctx context.Context, log eventLog, ev model.Event) model.Response {
	if err := r.svc.Moderation.Authorize(ev.UserID); err != nil {
		return log.fail(err)
	}

	target, ok := argInt64(ev.Args, 0)
	if !ok {
		return model.Response{Outcome: model.InvalidArgument{Usage: usageSetPoints}}
	}
	points, ok := argInt(ev.Args, 1)
	if !ok {
		return model.Response{Outcome: model.InvalidArgument{Usage: usageSetPoints}}
	}

	if err := r.svc.Moderation.SetPoints(ctx, ev.UserID, target, points); err != nil {
		return log.targetFail(target, err)
	}

	return model.Response{Outcome: model.PointsSet{UserID: target, Points: points}}
}

func (r *Router) broadcast(ctx context.Context, ev model.Event) model.Response {
	log := newEventLog(ev)

	if err := r.svc.Moderation.Authorize(ev.UserID); err != nil {
		return log.fail(err)
	}

	text := strings.TrimSpace(strings.Join(ev.Args, " "))
	if text == "" {
		return model.Response{Outcome: model.InvalidArgument{Usage: usageBroadcast}}
	}

	report, err := r.svc.Moderation.Broadcast(ctx, ev.UserID, text)
	return log.respond(report, err)
}

// eventLog maps handler results to responses, logging unexpected errors
// with the event fields attached.
type eventLog struct {
	*zap.Logger
}

func newEventLog(ev model.Event) eventLog {
	return eventLog{logger.Logger().With(
		zap.Int64("telegram_id", ev.UserID),
		zap.Stringer("intent", ev.Intent))}
}

func (l eventLog) respond(outcome model.Outcome, err error) model.Response {
	if err != nil {
		return l.fail(err)
	}
	return model.Response{Outcome: outcome}
}

func (l eventLog) fail(err error) model.Response {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return model.Response{Outcome: model.AccessDenied{}}
	case errors.Is(err, ErrTaskNotFound):
		return model.Response{Outcome: model.Ignored{}}
	}

	l.Error("failed to handle event", zap.Error(err))
	return model.Response{Outcome: model.Failure{}}
}

func (l eventLog) targetFail(target int64, err error) model.Response {
	if errors.Is(err, ErrUserNotFound) {
		return model.Response{Outcome: model.TargetNotFound{UserID: target}}
	}
	return l.fail(err)
}

func argInt64(args []string, i int) (int64, bool) {
	if i >= len(args) {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(args[i]), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// argInt rejects values that do not fit the platform int.
func argInt(args []string, i int) (int, bool) {
	if i >= len(args) {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(args[i]))
	if err != nil {
		return 0, false
	}
	return v, true
}
