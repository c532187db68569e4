package middleware

import (
	"net/http"

	"points_bot/pkg/auth"
	"points_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authorizer decides whether a caller may use moderator endpoints.
type Authorizer interface {
	Authorize(caller int64) error
}

type Authorization struct {
	moderation Authorizer
}

func NewAuthorization(moderation Authorizer) *Authorization {
	return &Authorization{
		moderation: moderation,
	}
}

// ModeratorOnly must run after auth.TelegramAuthMiddleware.
func (a *Authorization) ModeratorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		telegramUser, ok := auth.UserFromContext(c)
		if !ok {
			log.Error("telegram user data not found in context")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if err := a.moderation.Authorize(telegramUser.ID); err != nil {
			log.Info("unauthorized access attempt to admin endpoint",
				zap.Int64("telegram_id", telegramUser.ID))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "moderator access required"})
			return
		}

		c.Set("is_moderator", true)
		c.Next()
	}
}
