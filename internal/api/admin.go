package api

import (
	"errors"
	"net/http"
	"strconv"

	"points_bot/internal/middleware"
	"points_bot/internal/model"
	"points_bot/internal/service"
	"points_bot/pkg/auth"
	"points_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type adminRoutes struct {
	svc *service.Service
}

func NewAdminRoutes(handler *gin.RouterGroup, svc *service.Service, a *auth.TelegramAuth, authz *middleware.Authorization) {
	r := &adminRoutes{svc: svc}

	h := handler.Group("/admin")
	h.Use(a.TelegramAuthMiddleware(), authz.ModeratorOnly())
	{
		h.GET("/stats", r.GetStats)
		h.GET("/users", r.ListUsers)
		h.PUT("/users/:telegram_id/points", r.SetPoints)
		h.POST("/users/:telegram_id/ban", r.Ban)
		h.DELETE("/users/:telegram_id/ban", r.Unban)
		h.POST("/broadcast", r.Broadcast)
	}
}

type AdminUserResponse struct {
	TelegramID     int64       `json:"telegram_id"`
	DisplayName    string      `json:"display_name"`
	Points         int         `json:"points"`
	Referrals      int         `json:"referrals"`
	ReferralState  model.Phase `json:"referral_state"`
	RewardsClaimed int         `json:"rewards_claimed"`
	Email          string      `json:"email,omitempty"`
	Banned         bool        `json:"banned"`
	JoinDate       string      `json:"join_date"`
}

type SetPointsRequest struct {
	Points *int `json:"points" binding:"required"`
}

type BroadcastRequest struct {
	Text string `json:"text" binding:"required"`
}

func (r *adminRoutes) GetStats(c *gin.Context) {
	caller, _ := auth.UserFromContext(c)

	stats, err := r.svc.Moderation.Stats(c.Request.Context(), caller.ID)
	if err != nil {
		r.fail(c, "failed to get stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (r *adminRoutes) ListUsers(c *gin.Context) {
	caller, _ := auth.UserFromContext(c)

	users, err := r.svc.Moderation.ListUsers(c.Request.Context(), caller.ID)
	if err != nil {
		r.fail(c, "failed to list users", err)
		return
	}

	response := make([]AdminUserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, AdminUserResponse{
			TelegramID:     u.TelegramID,
			DisplayName:    u.DisplayName,
			Points:         u.Points,
			Referrals:      u.Referrals,
			ReferralState:  u.ReferralPhase,
			RewardsClaimed: u.RewardsClaimed,
			Email:          u.Email,
			Banned:         u.Banned,
			JoinDate:       u.JoinDate.Format(model.DateLayout),
		})
	}

	c.JSON(http.StatusOK, gin.H{"users": response})
}

func (r *adminRoutes) SetPoints(c *gin.Context) {
	caller, _ := auth.UserFromContext(c)

	target, ok := targetParam(c)
	if !ok {
		return
	}

	var req SetPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "points is required"})
		return
	}

	if err := r.svc.Moderation.SetPoints(c.Request.Context(), caller.ID, target, *req.Points); err != nil {
		r.fail(c, "failed to set points", err)
		return
	}

	c.JSON(http.StatusOK, model.PointsSet{UserID: target, Points: *req.Points})
}

func (r *adminRoutes) Ban(c *gin.Context) {
	r.setBanned(c, true)
}

func (r *adminRoutes) Unban(c *gin.Context) {
	r.setBanned(c, false)
}

func (r *adminRoutes) setBanned(c *gin.Context, banned bool) {
	caller, _ := auth.UserFromContext(c)

	target, ok := targetParam(c)
	if !ok {
		return
	}

	if err := r.svc.Moderation.SetBanned(c.Request.Context(), caller.ID, target, banned); err != nil {
		r.fail(c, "failed to update ban", err)
		return
	}

	c.JSON(http.StatusOK, model.BanUpdated{UserID: target, Banned: banned})
}

func (r *adminRoutes) Broadcast(c *gin.Context) {
	caller, _ := auth.UserFromContext(c)

	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	report, err := r.svc.Moderation.Broadcast(c.Request.Context(), caller.ID, req.Text)
	if err != nil {
		r.fail(c, "failed to broadcast", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (r *adminRoutes) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "moderator access required"})
	default:
		logger.Logger().Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func targetParam(c *gin.Context) (int64, bool) {
	target, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_id"})
		return 0, false
	}
	return target, true
}
