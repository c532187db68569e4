package api

import (
	"net/http"
	"time"

	"points_bot/internal/model"
	"points_bot/internal/service"
	"points_bot/pkg/auth"
	"points_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type dailyRoutes struct {
	svc *service.Service
}

func NewDailyRoutes(handler *gin.RouterGroup, svc *service.Service, a *auth.TelegramAuth) {
	r := &dailyRoutes{svc: svc}
	h := handler.Group("/users/me/daily")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("", r.GetDailyStatus)
		h.POST("", r.ClaimDaily)
	}
}

type DailyStatusResponse struct {
	LastClaimedOn string    `json:"last_claimed_on,omitempty"`
	IsAvailable   bool      `json:"is_available"`
	NextEligible  time.Time `json:"next_eligible"`
	Reward        int       `json:"reward"`
}

func (r *dailyRoutes) GetDailyStatus(c *gin.Context) {
	user, ok := enterUser(c, r.svc)
	if !ok {
		return
	}

	now := r.svc.Now()
	available := user.LastDailyClaim != now.UTC().Format(model.DateLayout)

	response := DailyStatusResponse{
		LastClaimedOn: user.LastDailyClaim,
		IsAvailable:   available,
		NextEligible:  service.NextEligible(now),
		Reward:        r.svc.Config().DailyBonus,
	}
	if available {
		response.NextEligible = now.UTC()
	}

	c.JSON(http.StatusOK, response)
}

func (r *dailyRoutes) ClaimDaily(c *gin.Context) {
	log := logger.Logger()

	user, ok := enterUser(c, r.svc)
	if !ok {
		return
	}

	outcome, err := r.svc.Daily.Claim(c.Request.Context(), user.TelegramID, r.svc.Now())
	if err != nil {
		log.Error("failed to claim daily reward", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to claim daily reward"})
		return
	}

	switch o := outcome.(type) {
	case model.DailyGranted:
		c.JSON(http.StatusOK, o)
	case model.DailyAlreadyClaimed:
		c.JSON(http.StatusForbidden, gin.H{
			"error":         "daily reward already claimed today",
			"next_eligible": o.NextEligible,
		})
	default:
		log.Error("unexpected daily claim outcome", zap.String("outcome", outcome.Kind()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to claim daily reward"})
	}
}
