package api

import (
	"net/http"

	"points_bot/internal/model"
	"points_bot/internal/service"
	"points_bot/pkg/auth"
	"points_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type userRoutes struct {
	svc *service.Service
}

func NewUserRoutes(handler *gin.RouterGroup, svc *service.Service, a *auth.TelegramAuth) {
	r := &userRoutes{svc: svc}

	h := handler.Group("/users")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("/me", r.GetMe)
	}

	handler.GET("/leaderboard", a.TelegramAuthMiddleware(), r.GetLeaderboard)
}

type UserResponse struct {
	TelegramID     int64       `json:"telegram_id"`
	DisplayName    string      `json:"display_name"`
	Points         int         `json:"points"`
	Referrals      int         `json:"referrals"`
	ReferralState  model.Phase `json:"referral_state"`
	RewardsClaimed int         `json:"rewards_claimed"`
	LastDailyClaim string      `json:"last_daily_claim,omitempty"`
	DailyAvailable bool        `json:"daily_available"`
	ReferralBonus  int         `json:"referral_bonus"`
	RedeemCost     int         `json:"redeem_cost"`
	JoinDate       string      `json:"join_date"`
}

// enterUser resolves the authenticated caller to a ledger record, creating it
// on first contact. Banned users are answered here and false is returned.
func enterUser(c *gin.Context, svc *service.Service) (*model.User, bool) {
	log := logger.Logger()

	telegramUser, ok := auth.UserFromContext(c)
	if !ok {
		log.Error("telegram user data not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return nil, false
	}

	user, _, err := svc.Users.Enter(c.Request.Context(), telegramUser.ID, telegramUser.DisplayName())
	if err != nil {
		log.Error("failed to enter user", zap.Error(err), zap.Int64("telegram_id", telegramUser.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return nil, false
	}

	if user.Banned {
		c.JSON(http.StatusForbidden, gin.H{"error": "user is banned"})
		return nil, false
	}

	return user, true
}

func (r *userRoutes) GetMe(c *gin.Context) {
	user, ok := enterUser(c, r.svc)
	if !ok {
		return
	}

	cfg := r.svc.Config()
	today := r.svc.Now().UTC().Format(model.DateLayout)

	c.JSON(http.StatusOK, UserResponse{
		TelegramID:     user.TelegramID,
		DisplayName:    user.DisplayName,
		Points:         user.Points,
		Referrals:      user.Referrals,
		ReferralState:  user.ReferralPhase,
		RewardsClaimed: user.RewardsClaimed,
		LastDailyClaim: user.LastDailyClaim,
		DailyAvailable: user.LastDailyClaim != today,
		ReferralBonus:  cfg.ReferrerBonus,
		RedeemCost:     cfg.RedeemCost,
		JoinDate:       user.JoinDate.Format(model.DateLayout),
	})
}

func (r *userRoutes) GetLeaderboard(c *gin.Context) {
	log := logger.Logger()

	user, ok := enterUser(c, r.svc)
	if !ok {
		return
	}

	n := r.svc.Config().LeaderboardSize
	entries, err := r.svc.Leaderboard.Top(c.Request.Context(), n)
	if err != nil {
		log.Error("failed to get leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	rank, _, err := r.svc.Leaderboard.RankOf(c.Request.Context(), user.TelegramID, n)
	if err != nil {
		log.Error("failed to get leaderboard rank", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	c.JSON(http.StatusOK, model.Leaderboard{Entries: entries, Rank: rank})
}
