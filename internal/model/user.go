package model

import "time"

// DateLayout is the layout of LastDailyClaim: a UTC calendar day.
const DateLayout = "2006-01-02"

type User struct {
	TelegramID     int64
	DisplayName    string
	Points         int
	Referrals      int
	ReferralPhase  Phase
	ReferrerID     *int64
	LastDailyClaim string
	AwaitingEmail  bool
	Email          string
	RewardsClaimed int
	Tasks          map[string]Phase
	Banned         bool
	JoinDate       time.Time
	// Seq is the first-seen order of the user, used to break ranking ties.
	Seq int64
}

func NewUser(telegramID int64, displayName string, joinDate time.Time, seq int64) *User {
	return &User{
		TelegramID:  telegramID,
		DisplayName: displayName,
		Tasks:       make(map[string]Phase),
		JoinDate:    joinDate.UTC(),
		Seq:         seq,
	}
}

// Clone returns a deep copy safe to mutate independently of u.
func (u *User) Clone() *User {
	c := *u
	if u.ReferrerID != nil {
		id := *u.ReferrerID
		c.ReferrerID = &id
	}
	c.Tasks = make(map[string]Phase, len(u.Tasks))
	for k, v := range u.Tasks {
		c.Tasks[k] = v
	}
	return &c
}

func (u *User) TaskPhase(taskID string) Phase {
	if u.Tasks == nil {
		return PhaseNone
	}
	return u.Tasks[taskID]
}

func (u *User) SetTaskPhase(taskID string, p Phase) {
	if u.Tasks == nil {
		u.Tasks = make(map[string]Phase)
	}
	u.Tasks[taskID] = p
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	TelegramID  int64  `json:"telegram_id"`
	DisplayName string `json:"display_name"`
	Referrals   int    `json:"referrals"`
	Points      int    `json:"points"`
}

type Stats struct {
	TotalUsers      int   `json:"total_users"`
	TotalPoints     int   `json:"total_points"`
	TotalReferrals  int   `json:"total_referrals"`
	RewardsClaimed  int   `json:"rewards_claimed"`
	BannedUsers     int   `json:"banned_users"`
	PersistFailures int64 `json:"persist_failures"`
}
