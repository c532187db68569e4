package model

type Intent int

const (
	IntentUnknown Intent = iota
	IntentStart
	IntentHelp
	IntentReferralLink
	IntentViewPoints
	IntentClaimDaily
	IntentRedeem
	IntentLeaderboard
	IntentTaskInfo
	IntentTaskProof
	IntentFreeText

	IntentAdminPanel
	IntentBan
	IntentUnban
	IntentSetPoints
	IntentStats
	IntentListUsers
	IntentBroadcast
)

var intentNames = map[Intent]string{
	IntentUnknown:      "unknown",
	IntentStart:        "start",
	IntentHelp:         "help",
	IntentReferralLink: "referral_link",
	IntentViewPoints:   "view_points",
	IntentClaimDaily:   "claim_daily",
	IntentRedeem:       "redeem",
	IntentLeaderboard:  "leaderboard",
	IntentTaskInfo:     "task_info",
	IntentTaskProof:    "task_proof",
	IntentFreeText:     "free_text",
	IntentAdminPanel:   "admin_panel",
	IntentBan:          "ban",
	IntentUnban:        "unban",
	IntentSetPoints:    "set_points",
	IntentStats:        "stats",
	IntentListUsers:    "list_users",
	IntentBroadcast:    "broadcast",
}

func (i Intent) String() string {
	if s, ok := intentNames[i]; ok {
		return s
	}
	return "unknown"
}

// Moderation reports whether the intent is a moderator operation.
func (i Intent) Moderation() bool {
	return i >= IntentAdminPanel
}

// Event is an inbound chat event already classified by the transport.
type Event struct {
	UserID      int64
	DisplayName string
	Intent      Intent
	// Text is the raw message text, consumed by email capture and task proofs.
	Text string
	// Args are command arguments: the referrer id for IntentStart, the task id
	// for task intents, target and value for moderation intents.
	Args []string
}

type Menu int

const (
	MenuNone Menu = iota
	MenuMain
	MenuAdmin
)

// Response is what the core hands back to the transport for rendering.
type Response struct {
	Outcome Outcome
	Menu    Menu
}
