package model

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the semantic result of an event. Expected rejections
// (already claimed, insufficient points, ...) are outcomes, not errors.
type Outcome interface {
	Kind() string
}

type Welcome struct {
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
	Referrals   int    `json:"referrals"`
	// Referral is the outcome of the referral click carried by the start
	// event, nil when there was none or it was ignored.
	Referral Outcome `json:"referral,omitempty"`
}

type Help struct {
	RedeemCost int `json:"redeem_cost"`
}

type ReferralLink struct {
	UserID    int64 `json:"user_id"`
	Referrals int   `json:"referrals"`
	Bonus     int   `json:"bonus"`
}

type ReferralRegistered struct {
	ReferrerID int64 `json:"referrer_id"`
}

type ReferralConfirmed struct {
	ReferrerID   int64  `json:"referrer_id"`
	ReferrerName string `json:"referrer_name"`
	Awarded      int    `json:"awarded"`
	Balance      int    `json:"balance"`
}

// ReferralCredited is sent to the referrer when a referral confirms.
type ReferralCredited struct {
	ReferredName string `json:"referred_name"`
	Awarded      int    `json:"awarded"`
	Referrals    int    `json:"referrals"`
	Balance      int    `json:"balance"`
}

type Balance struct {
	Points         int `json:"points"`
	Referrals      int `json:"referrals"`
	RewardsClaimed int `json:"rewards_claimed"`
}

type DailyGranted struct {
	Awarded int `json:"awarded"`
	Balance int `json:"balance"`
}

type DailyAlreadyClaimed struct {
	NextEligible time.Time `json:"next_eligible"`
}

type InsufficientPoints struct {
	Needed int `json:"needed"`
	Have   int `json:"have"`
	Cost   int `json:"cost"`
}

type EmailRequested struct{}

type InvalidEmail struct{}

type RedemptionCompleted struct {
	ClaimID   uuid.UUID `json:"claim_id"`
	Email     string    `json:"email"`
	Remaining int       `json:"remaining"`
}

// RedemptionClaimed is sent to the moderator after a successful redemption.
type RedemptionClaimed struct {
	ClaimID     uuid.UUID `json:"claim_id"`
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	TotalClaims int       `json:"total_claims"`
	Remaining   int       `json:"remaining"`
}

type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
	// Rank of the requesting user, zero when outside the board.
	Rank int `json:"rank"`
}

type TaskInfo struct {
	Task  Task  `json:"task"`
	Phase Phase `json:"phase"`
}

type TaskFirstClick struct {
	Task Task `json:"task"`
}

type TaskCompleted struct {
	Task    Task `json:"task"`
	Awarded int  `json:"awarded"`
	Balance int  `json:"balance"`
}

type TaskAlreadyCompleted struct {
	Task Task `json:"task"`
}

type Banned struct{}

type Ignored struct{}

type AccessDenied struct{}

type InvalidArgument struct {
	Usage string `json:"usage"`
}

type TargetNotFound struct {
	UserID int64 `json:"user_id"`
}

type AdminPanel struct{}

type BanUpdated struct {
	UserID int64 `json:"user_id"`
	Banned bool  `json:"banned"`
}

type PointsSet struct {
	UserID int64 `json:"user_id"`
	Points int   `json:"points"`
}

type StatsReport struct {
	Stats Stats `json:"stats"`
}

type UserList struct {
	Users []*User `json:"users"`
}

type Announcement struct {
	Text string `json:"text"`
}

type BroadcastReport struct {
	Recipients int `json:"recipients"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
}

type Failure struct{}

func (Welcome) Kind() string              { return "welcome" }
func (Help) Kind() string                 { return "help" }
func (ReferralLink) Kind() string         { return "referral_link" }
func (ReferralRegistered) Kind() string   { return "referral_registered" }
func (ReferralConfirmed) Kind() string    { return "referral_confirmed" }
func (ReferralCredited) Kind() string     { return "referral_credited" }
func (Balance) Kind() string              { return "balance" }
func (DailyGranted) Kind() string         { return "daily_granted" }
func (DailyAlreadyClaimed) Kind() string  { return "daily_already_claimed" }
func (InsufficientPoints) Kind() string   { return "insufficient_points" }
func (EmailRequested) Kind() string       { return "email_requested" }
func (InvalidEmail) Kind() string         { return "invalid_email" }
func (RedemptionCompleted) Kind() string  { return "redemption_completed" }
func (RedemptionClaimed) Kind() string    { return "redemption_claimed" }
func (Leaderboard) Kind() string          { return "leaderboard" }
func (TaskInfo) Kind() string             { return "task_info" }
func (TaskFirstClick) Kind() string       { return "task_first_click" }
func (TaskCompleted) Kind() string        { return "task_completed" }
func (TaskAlreadyCompleted) Kind() string { return "task_already_completed" }
func (Banned) Kind() string               { return "banned" }
func (Ignored) Kind() string              { return "ignored" }
func (AccessDenied) Kind() string         { return "access_denied" }
func (InvalidArgument) Kind() string      { return "invalid_argument" }
func (TargetNotFound) Kind() string       { return "target_not_found" }
func (AdminPanel) Kind() string           { return "admin_panel" }
func (BanUpdated) Kind() string           { return "ban_updated" }
func (PointsSet) Kind() string            { return "points_set" }
func (StatsReport) Kind() string          { return "stats" }
func (UserList) Kind() string             { return "user_list" }
func (Announcement) Kind() string         { return "announcement" }
func (BroadcastReport) Kind() string      { return "broadcast_report" }
func (Failure) Kind() string              { return "failure" }
